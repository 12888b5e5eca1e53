// Package dac implements the 7-bit stimulation current DAC capability.
//
// Every backend validates the code itself: a request above MaxCode is
// rejected with ErrOutOfRange and nothing is written to the hardware.
package dac

import "errors"

// MaxCode is the largest code accepted by a 7-bit DAC.
const MaxCode = 127

var (
	ErrOutOfRange = errors.New("dac: code out of range")
	ErrNotStarted = errors.New("dac: not started")
)

// Check returns ErrOutOfRange if code cannot be represented in 7 bits.
func Check(code uint8) error {
	if code > MaxCode {
		return ErrOutOfRange
	}
	return nil
}

// Register is a 32-bit hardware register, see mux.Register.
type Register interface {
	Get() uint32
	Set(uint32)
}

const (
	idacCodeMask = 0x7f
	idacEnable   = 1 << 8
)

// IDAC is an on-chip current DAC controlled through a single register: the
// code lives in bits 0..6 and bit 8 enables the output.
type IDAC struct {
	reg     Register
	started bool
}

// NewIDAC returns an IDAC for the given control register. It must be
// started before use.
func NewIDAC(reg Register) *IDAC {
	return &IDAC{reg: reg}
}

// Start enables the DAC output at code 0.
func (d *IDAC) Start() error {
	d.reg.Set(d.reg.Get()&^idacCodeMask | idacEnable)
	d.started = true
	return nil
}

// SetValue sets the output current code.
func (d *IDAC) SetValue(code uint8) error {
	if !d.started {
		return ErrNotStarted
	}
	if err := Check(code); err != nil {
		return err
	}
	d.reg.Set(d.reg.Get()&^idacCodeMask | uint32(code))
	return nil
}

// Value returns the code currently in the control register.
func (d *IDAC) Value() uint8 {
	return uint8(d.reg.Get() & idacCodeMask)
}
