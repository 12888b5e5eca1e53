package stimulus

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/tinygo-org/stimulator/dac"
	"github.com/tinygo-org/stimulator/mux"
	"github.com/tinygo-org/stimulator/sim"
)

func newBench(c *qt.C) *sim.Bench {
	b, err := sim.NewBench(mux.PSoC4Layout(0, 1))
	c.Assert(err, qt.IsNil)
	b.Trace.Reset()
	return b
}

func TestSingleCycle(t *testing.T) {
	c := qt.New(t)
	b := newBench(c)
	var faults []error
	s := New(b.Router, b.DAC, b.LED, Config{
		Pulse:  DefaultPulse,
		Settle: DefaultSettle,
		Wait:   b.Wait,
		Fault:  func(err error) { faults = append(faults, err) },
	})

	s.Fire()

	c.Assert(faults, qt.HasLen, 0)
	c.Assert(s.Cycles(), qt.Equals, uint32(1))

	r := b.Analyze()
	c.Assert(r.Violations, qt.HasLen, 0)
	c.Assert(r.Cycles, qt.Equals, 1)
	c.Assert(r.Routes, qt.DeepEquals, []mux.State{mux.Forward, mux.Grounded, mux.Reverse, mux.Grounded})
	c.Assert(r.Phases, qt.HasLen, 2)
	c.Assert(r.Phases[0].Width, qt.Equals, r.Phases[1].Width)
	c.Assert(r.Phases[0].Code, qt.Equals, uint8(127))

	// LED on first, off last.
	w := b.Trace.Writes
	c.Assert(w[0].Target, qt.Equals, sim.TargetIndicator)
	c.Assert(w[0].Value, qt.Equals, uint32(1))
	c.Assert(w[len(w)-1].Target, qt.Equals, sim.TargetIndicator)
	c.Assert(w[len(w)-1].Value, qt.Equals, uint32(0))
	c.Assert(b.LED.Get(), qt.IsFalse)
	c.Assert(b.Router.State(), qt.Equals, mux.Grounded)
	c.Assert(b.DAC.Value(), qt.Equals, uint8(0))
}

func TestDACZeroAtEveryTransition(t *testing.T) {
	c := qt.New(t)
	b := newBench(c)
	s := New(b.Router, b.DAC, b.LED, Config{Pulse: DefaultPulse, Settle: DefaultSettle, Wait: b.Wait})

	for i := 0; i < 5; i++ {
		s.Fire()
	}

	var code uint8
	for _, w := range b.Trace.Writes {
		switch w.Target {
		case sim.TargetDAC:
			code = uint8(w.Value & dac.MaxCode)
		case sim.TargetRoute, sim.TargetConfig:
			c.Assert(code, qt.Equals, uint8(0), qt.Commentf("write %v", w))
		}
	}
	c.Assert(b.Analyze().Cycles, qt.Equals, 5)
}

func TestCycleTime(t *testing.T) {
	c := qt.New(t)
	b := newBench(c)
	settle := 3 * time.Microsecond
	s := New(b.Router, b.DAC, b.LED, Config{
		Pulse:  Pulse{Amplitude: 127, Width: 57 * time.Microsecond},
		Settle: settle,
		Wait:   b.Wait,
	})

	s.Fire()

	r := b.Analyze()
	c.Assert(r.CycleTimes, qt.DeepEquals, []time.Duration{2*57*time.Microsecond + settle})
	c.Assert(r.CycleTimes[0], qt.Equals, CycleDuration(s.Pulse(), s.Settle()))
}

func TestDefaultCycleDuration(t *testing.T) {
	c := qt.New(t)
	c.Assert(CycleDuration(DefaultPulse, DefaultSettle), qt.Equals, 115*time.Microsecond)
}

func TestZeroPulseIsKept(t *testing.T) {
	c := qt.New(t)
	b := newBench(c)
	var faults []error
	s := New(b.Router, b.DAC, b.LED, Config{
		Wait:  b.Wait,
		Fault: func(err error) { faults = append(faults, err) },
	})
	c.Assert(s.Pulse(), qt.Equals, Pulse{})
	c.Assert(s.Settle(), qt.Equals, time.Duration(0))

	s.Fire()

	c.Assert(faults, qt.HasLen, 0)
	c.Assert(s.Cycles(), qt.Equals, uint32(1))
	for _, w := range b.Trace.Writes {
		if w.Target == sim.TargetDAC {
			c.Assert(w.Value&dac.MaxCode, qt.Equals, uint32(0), qt.Commentf("write %v", w))
		}
	}
	r := b.Analyze()
	c.Assert(r.Violations, qt.HasLen, 0)
	c.Assert(r.Phases, qt.HasLen, 0)
	c.Assert(r.CycleTimes, qt.DeepEquals, []time.Duration{0})
}

func TestWriteLatencyKeepsPhaseWidth(t *testing.T) {
	c := qt.New(t)
	b := newBench(c)
	const latency = 45 * time.Microsecond
	slow := &slowDAC{dac: b.DAC, wait: b.Wait, latency: latency}
	s := New(b.Router, slow, b.LED, Config{
		Pulse:        DefaultPulse,
		Settle:       DefaultSettle,
		WriteLatency: latency,
		Wait:         b.Wait,
	})

	s.Fire()

	r := b.Analyze()
	c.Assert(r.Violations, qt.HasLen, 0)
	c.Assert(r.Phases, qt.HasLen, 2)
	c.Assert(r.Phases[0].Width, qt.Equals, DefaultPulse.Width)
	c.Assert(r.Phases[1].Width, qt.Equals, DefaultPulse.Width)
	c.Assert(r.CycleTimes[0], qt.Equals, s.Busy())
	c.Assert(s.Busy(), qt.Equals, 115*time.Microsecond+2*latency)
}

func TestWriteLatencyLongerThanPhase(t *testing.T) {
	c := qt.New(t)
	b := newBench(c)
	slow := &slowDAC{dac: b.DAC, wait: b.Wait, latency: 20 * time.Microsecond}
	s := New(b.Router, slow, b.LED, Config{
		Pulse:        Pulse{Amplitude: 10, Width: 5 * time.Microsecond},
		WriteLatency: 20 * time.Microsecond,
		Wait:         b.Wait,
	})

	s.Fire()

	r := b.Analyze()
	c.Assert(r.Violations, qt.HasLen, 0)
	c.Assert(r.Phases[0].Width, qt.Equals, 20*time.Microsecond)
	c.Assert(r.CycleTimes[0], qt.Equals, s.Busy())
}

// slowDAC takes latency to apply a code, like a DAC behind a serial bus.
type slowDAC struct {
	dac     DAC
	wait    func(time.Duration)
	latency time.Duration
}

func (d *slowDAC) SetValue(code uint8) error {
	d.wait(d.latency)
	return d.dac.SetValue(code)
}

func TestFireWithPerCallShape(t *testing.T) {
	c := qt.New(t)
	b := newBench(c)
	s := New(b.Router, b.DAC, b.LED, Config{Wait: b.Wait})

	s.FireWith(Pulse{Amplitude: 40, Width: 10 * time.Microsecond})

	r := b.Analyze()
	c.Assert(r.Violations, qt.HasLen, 0)
	c.Assert(r.Phases[0].Code, qt.Equals, uint8(40))
	c.Assert(r.Phases[0].Width, qt.Equals, 10*time.Microsecond)
	c.Assert(r.Phases[1].Width, qt.Equals, 10*time.Microsecond)
}

func TestAmplitudeBoundary(t *testing.T) {
	c := qt.New(t)

	b := newBench(c)
	var faults []error
	s := New(b.Router, b.DAC, b.LED, Config{
		Wait:  b.Wait,
		Fault: func(err error) { faults = append(faults, err) },
	})
	s.FireWith(Pulse{Amplitude: 127, Width: time.Microsecond})
	c.Assert(faults, qt.HasLen, 0)
	c.Assert(b.Analyze().Phases[0].Code, qt.Equals, uint8(127))

	// 128 does not fit in 7 bits: the DAC refuses it and the fault hook
	// hears about it, once per phase. No current flows.
	b.Trace.Reset()
	s.FireWith(Pulse{Amplitude: 128, Width: time.Microsecond})
	c.Assert(faults, qt.HasLen, 2)
	for _, err := range faults {
		c.Assert(err, qt.ErrorIs, dac.ErrOutOfRange)
	}
	r := b.Analyze()
	c.Assert(r.Phases, qt.HasLen, 0)
	c.Assert(b.Router.State(), qt.Equals, mux.Grounded)
	c.Assert(b.DAC.Value(), qt.Equals, uint8(0))
}

func TestReentry(t *testing.T) {
	c := qt.New(t)
	b := newBench(c)
	var (
		faults []error
		s      *Sequencer
		nested bool
	)
	s = New(b.Router, b.DAC, b.LED, Config{
		Wait: func(d time.Duration) {
			b.Wait(d)
			if !nested {
				nested = true
				// A trigger arriving in the middle of the forward phase.
				before := len(b.Trace.Writes)
				s.Fire()
				c.Assert(b.Trace.Writes, qt.HasLen, before)
			}
		},
		Pulse: DefaultPulse,
		Fault: func(err error) { faults = append(faults, err) },
	})

	s.Fire()

	c.Assert(faults, qt.HasLen, 1)
	c.Assert(faults[0], qt.ErrorIs, ErrReentered)
	c.Assert(s.Cycles(), qt.Equals, uint32(1))
	c.Assert(b.Analyze().Violations, qt.HasLen, 0)

	// The guard is released after the cycle.
	s.Fire()
	c.Assert(s.Cycles(), qt.Equals, uint32(2))
	c.Assert(faults, qt.HasLen, 1)
}

func TestDefaultFaultPanics(t *testing.T) {
	c := qt.New(t)
	b := newBench(c)
	s := New(b.Router, b.DAC, b.LED, Config{Wait: b.Wait})
	c.Assert(func() { s.FireWith(Pulse{Amplitude: 200, Width: time.Microsecond}) }, qt.PanicMatches, "dac: code out of range")
}

func TestSpin(t *testing.T) {
	c := qt.New(t)
	start := time.Now()
	spin(200 * time.Microsecond)
	c.Assert(time.Since(start) >= 200*time.Microsecond, qt.IsTrue)
}
