package stimulus

import (
	"errors"
	"sync/atomic"
	"time"

	"github.com/tinygo-org/stimulator/mux"
)

// ErrReentered is reported when a pulse cycle is triggered while another
// one is still running. This means the trigger period is too short.
var ErrReentered = errors.New("stimulus: pulse cycle re-entered")

// Router is the electrode routing capability, implemented by *mux.Router.
type Router interface {
	Set(mux.State)
}

// DAC is the current DAC capability.
type DAC interface {
	SetValue(code uint8) error
}

// Indicator is a digital output showing that a pulse cycle is running. It
// is implemented by machine.Pin.
type Indicator interface {
	Set(bool)
}

// Config holds the pulse shape and the hooks of a Sequencer. Pulse and
// Settle are used as given, including zero values; nil hooks are replaced
// with defaults by New.
type Config struct {
	Pulse Pulse

	// Settle is the grounded gap between the two phases.
	Settle time.Duration

	// WriteLatency is the time a DAC write takes to reach the output, for
	// example one I2C transaction. It is taken off each phase wait so the
	// phase itself keeps its width.
	WriteLatency time.Duration

	// Wait must block for the given duration without yielding. It is
	// called from interrupt context.
	Wait func(time.Duration)

	// Fault receives hardware faults and timing violations. It is expected
	// to bring the system into a safe state, usually by resetting it.
	Fault func(error)
}

// Sequencer emits one biphasic pulse each time it is fired. It owns the
// mux router and the DAC; nothing else may touch them.
type Sequencer struct {
	router Router
	dac    DAC
	led    Indicator
	cfg    Config
	busy   atomic.Bool
	cycles atomic.Uint32
}

// New returns a Sequencer. The router must already be grounded and the DAC
// started at code 0.
func New(router Router, dac DAC, led Indicator, cfg Config) *Sequencer {
	if cfg.Wait == nil {
		cfg.Wait = spin
	}
	if cfg.Fault == nil {
		cfg.Fault = func(err error) {
			panic(err.Error())
		}
	}
	return &Sequencer{
		router: router,
		dac:    dac,
		led:    led,
		cfg:    cfg,
	}
}

// Pulse returns the configured pulse shape.
func (s *Sequencer) Pulse() Pulse {
	return s.cfg.Pulse
}

// Settle returns the configured gap between the two phases.
func (s *Sequencer) Settle() time.Duration {
	return s.cfg.Settle
}

// Busy returns how long one cycle of the configured pulse keeps the
// sequencer busy. The write ending a phase is part of the phase, the write
// starting it is not.
func (s *Sequencer) Busy() time.Duration {
	p := s.cfg.Pulse
	if p.Width < s.cfg.WriteLatency {
		p.Width = s.cfg.WriteLatency
	}
	return CycleDuration(p, s.cfg.Settle) + 2*s.cfg.WriteLatency
}

// Cycles returns the number of completed pulse cycles.
func (s *Sequencer) Cycles() uint32 {
	return s.cycles.Load()
}

// Fire emits the configured pulse. It is meant to be called from the
// trigger interrupt and returns when the cycle is complete.
func (s *Sequencer) Fire() {
	s.FireWith(s.cfg.Pulse)
}

// FireWith emits one forward phase and one reverse phase of the given
// shape. The DAC is always at code 0 when the routing changes, and the
// electrodes are grounded between the phases and at the end.
//
// A phase shorter than the DAC write latency lasts as long as the write.
// There is no way to abort a cycle once started. A DAC error is reported to
// the fault hook and the cycle continues so the outputs end up grounded.
func (s *Sequencer) FireWith(p Pulse) {
	if !s.busy.CompareAndSwap(false, true) {
		s.cfg.Fault(ErrReentered)
		return
	}
	defer s.busy.Store(false)

	s.led.Set(true)

	hold := p.Width - s.cfg.WriteLatency
	if hold < 0 {
		hold = 0
	}

	s.router.Set(mux.Forward)
	s.setDAC(p.Amplitude)
	s.cfg.Wait(hold)
	s.setDAC(0)
	s.router.Set(mux.Grounded)

	s.cfg.Wait(s.cfg.Settle)

	s.router.Set(mux.Reverse)
	s.setDAC(p.Amplitude)
	s.cfg.Wait(hold)
	s.setDAC(0)
	s.router.Set(mux.Grounded)

	s.led.Set(false)
	s.cycles.Add(1)
}

func (s *Sequencer) setDAC(code uint8) {
	if err := s.dac.SetValue(code); err != nil {
		s.cfg.Fault(err)
	}
}

// spin busy-waits using the monotonic clock. Targets pass a cycle-counting
// delay instead.
func spin(d time.Duration) {
	start := time.Now()
	for time.Since(start) < d {
	}
}
