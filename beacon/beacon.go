// Package beacon encodes the stimulation settings into the manufacturer
// data of the advertisement, so a scanner can tell a stimulator apart from
// other devices and see what it is doing without connecting.
//
// Layout (little endian):
//
//	[0]   magic 'S'
//	[1]   format version
//	[2]   amplitude (DAC code)
//	[3:5] phase width in µs
//	[5:7] settle gap in µs
//	[7:9] trigger period in units of 100µs
package beacon

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/tinygo-org/stimulator/stimulus"
)

// CompanyID is the Bluetooth SIG company identifier reserved for testing.
const CompanyID = 0xffff

const (
	magic   = 'S'
	version = 1
	size    = 9

	periodUnit = 100 * time.Microsecond
)

var (
	ErrShort   = errors.New("beacon: payload too short")
	ErrMagic   = errors.New("beacon: not a stimulator payload")
	ErrVersion = errors.New("beacon: unsupported format version")
	ErrMissing = errors.New("beacon: no stimulator manufacturer data")
)

// Beacon is the advertised state of a stimulator.
type Beacon struct {
	Pulse  stimulus.Pulse
	Settle time.Duration
	Period time.Duration
}

// Encode returns the manufacturer data payload. Durations are truncated to
// the resolution of the format and saturate at its maximum.
func (b Beacon) Encode() []byte {
	buf := make([]byte, size)
	buf[0] = magic
	buf[1] = version
	buf[2] = b.Pulse.Amplitude
	binary.LittleEndian.PutUint16(buf[3:5], units(b.Pulse.Width, time.Microsecond))
	binary.LittleEndian.PutUint16(buf[5:7], units(b.Settle, time.Microsecond))
	binary.LittleEndian.PutUint16(buf[7:9], units(b.Period, periodUnit))
	return buf
}

func units(d, unit time.Duration) uint16 {
	n := d / unit
	if n > 0xffff {
		return 0xffff
	}
	if n < 0 {
		return 0
	}
	return uint16(n)
}

// Decode parses a manufacturer data payload.
func Decode(data []byte) (Beacon, error) {
	if len(data) < size {
		return Beacon{}, fmt.Errorf("%w: %d bytes", ErrShort, len(data))
	}
	if data[0] != magic {
		return Beacon{}, ErrMagic
	}
	if data[1] != version {
		return Beacon{}, fmt.Errorf("%w: %d", ErrVersion, data[1])
	}
	return Beacon{
		Pulse: stimulus.Pulse{
			Amplitude: data[2],
			Width:     time.Duration(binary.LittleEndian.Uint16(data[3:5])) * time.Microsecond,
		},
		Settle: time.Duration(binary.LittleEndian.Uint16(data[5:7])) * time.Microsecond,
		Period: time.Duration(binary.LittleEndian.Uint16(data[7:9])) * periodUnit,
	}, nil
}

// Element returns the advertisement element carrying the beacon.
func (b Beacon) Element() bluetooth.ManufacturerDataElement {
	return bluetooth.ManufacturerDataElement{CompanyID: CompanyID, Data: b.Encode()}
}

// Find looks for a stimulator beacon among the manufacturer data of a scan
// result.
func Find(elements []bluetooth.ManufacturerDataElement) (Beacon, error) {
	err := ErrMissing
	for _, e := range elements {
		if e.CompanyID != CompanyID {
			continue
		}
		var b Beacon
		b, err = Decode(e.Data)
		if err == nil {
			return b, nil
		}
	}
	return Beacon{}, err
}

func (b Beacon) String() string {
	return fmt.Sprintf("amplitude=%d width=%v settle=%v period=%v", b.Pulse.Amplitude, b.Pulse.Width, b.Settle, b.Period)
}
