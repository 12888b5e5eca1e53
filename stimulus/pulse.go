// Package stimulus emits biphasic, charge-balanced current pulses on the
// electrode pair.
package stimulus

import "time"

// Pulse is the shape of one phase of a stimulation pulse. The same shape
// is used for the forward and the reverse phase.
type Pulse struct {
	// Amplitude is the DAC code during the phase. The Sequencer passes it
	// through unchanged; the DAC decides whether it is in range.
	Amplitude uint8

	// Width is the duration of each phase.
	Width time.Duration
}

// DefaultPulse is full scale on a 7-bit DAC for 57µs per phase.
var DefaultPulse = Pulse{
	Amplitude: 127,
	Width:     57 * time.Microsecond,
}

// DefaultSettle is the grounded gap between the forward and the reverse
// phase.
const DefaultSettle = 1 * time.Microsecond

// CycleDuration returns the busy time of one pulse cycle: both phases plus
// the settling gap. Register writes are not included.
func CycleDuration(p Pulse, settle time.Duration) time.Duration {
	return 2*p.Width + settle
}
