package dac

import (
	"fmt"
	"time"

	"tinygo.org/x/drivers"
)

// RheostatAddress is the fixed I2C address of the MCP4017/MCP4018/MCP4019
// family.
const RheostatAddress = 0x2f

// RheostatWriteTime returns how long a wiper write takes on a bus running
// at frequency Hz: start, address and data bytes with their ACK bits, stop.
// The new code takes effect at the end of the transaction.
func RheostatWriteTime(frequency uint32) time.Duration {
	const bits = 1 + 9 + 9 + 1
	return bits * time.Second / time.Duration(frequency)
}

// Rheostat is a 7-bit I2C digital rheostat (MCP401x) setting the
// reference of an external current source. The device has no register
// map: a single byte write sets the wiper, a single byte read returns it.
type Rheostat struct {
	bus     drivers.I2C
	Address uint16
	started bool
	code    uint8
	buf     [1]byte
}

// NewRheostat returns a rheostat on the given bus at RheostatAddress.
func NewRheostat(bus drivers.I2C) *Rheostat {
	return &Rheostat{
		bus:     bus,
		Address: RheostatAddress,
	}
}

// Start puts the wiper at code 0 and verifies the device answers with it.
func (d *Rheostat) Start() error {
	d.started = true
	if err := d.SetValue(0); err != nil {
		d.started = false
		return err
	}
	got, err := d.Read()
	if err != nil {
		d.started = false
		return err
	}
	if got != 0 {
		d.started = false
		return fmt.Errorf("dac: rheostat reports wiper %d after reset", got)
	}
	return nil
}

// SetValue writes the wiper position.
func (d *Rheostat) SetValue(code uint8) error {
	if !d.started {
		return ErrNotStarted
	}
	if err := Check(code); err != nil {
		return err
	}
	// The buffer lives in the device so this does not allocate; SetValue
	// is called from interrupt context.
	d.buf[0] = code
	if err := d.bus.Tx(d.Address, d.buf[:], nil); err != nil {
		return err
	}
	d.code = code
	return nil
}

// Read returns the wiper position reported by the device.
func (d *Rheostat) Read() (uint8, error) {
	if err := d.bus.Tx(d.Address, nil, d.buf[:]); err != nil {
		return 0, err
	}
	return d.buf[0] & MaxCode, nil
}

// Value returns the last code written successfully.
func (d *Rheostat) Value() uint8 {
	return d.code
}
