package mux_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/tinygo-org/stimulator/mux"
	"github.com/tinygo-org/stimulator/sim"
)

func TestNewGrounds(t *testing.T) {
	c := qt.New(t)
	trace := sim.NewTrace()
	route := sim.NewRegister(trace, sim.TargetRoute)
	config := sim.NewRegister(trace, sim.TargetConfig)
	route.Set(0xffff_ffff)
	trace.Reset()

	r := mux.New(route, config, mux.PSoC4Layout(0, 1))

	c.Assert(r.State(), qt.Equals, mux.Grounded)
	// Only the electrode nibbles are cleared.
	c.Assert(route.Get(), qt.Equals, uint32(0xffff_ff00))
	c.Assert(config.Get(), qt.Equals, uint32(0x06|0x06<<3))
	c.Assert(trace.Writes, qt.HasLen, 2)
}

func TestPSoC4Layout(t *testing.T) {
	c := qt.New(t)
	trace := sim.NewTrace()
	route := sim.NewRegister(trace, sim.TargetRoute)
	config := sim.NewRegister(trace, sim.TargetConfig)
	r := mux.New(route, config, mux.PSoC4Layout(0, 1))

	tests := []struct {
		state  mux.State
		route  uint32
		config uint32
	}{
		{mux.Forward, 0x06 << 4, 0x06},
		{mux.Grounded, 0, 0x06 | 0x06<<3},
		{mux.Reverse, 0x06, 0x06 << 3},
		{mux.Grounded, 0, 0x06 | 0x06<<3},
	}
	for _, tc := range tests {
		r.Set(tc.state)
		c.Assert(r.State(), qt.Equals, tc.state)
		c.Assert(route.Get(), qt.Equals, tc.route, qt.Commentf("route in %s", tc.state))
		c.Assert(config.Get(), qt.Equals, tc.config, qt.Commentf("config in %s", tc.state))
	}
}

func TestSwitchLayoutPreservesOtherPins(t *testing.T) {
	c := qt.New(t)
	trace := sim.NewTrace()
	out := sim.NewRegister(trace, sim.TargetRoute)
	dir := sim.NewRegister(trace, sim.TargetConfig)
	const led = 1 << 13
	out.Set(led)
	dir.Set(led)

	r := mux.New(out, dir, mux.SwitchLayout(2, 3, 4, 5))
	c.Assert(out.Get(), qt.Equals, uint32(led))
	c.Assert(dir.Get(), qt.Equals, uint32(led|1<<4|1<<5))

	r.Set(mux.Forward)
	c.Assert(out.Get(), qt.Equals, uint32(led|1<<3))
	c.Assert(dir.Get(), qt.Equals, uint32(led|1<<4))

	r.Set(mux.Grounded)
	r.Set(mux.Reverse)
	c.Assert(out.Get(), qt.Equals, uint32(led|1<<2))
	c.Assert(dir.Get(), qt.Equals, uint32(led|1<<5))
}

func TestSetIsIdempotent(t *testing.T) {
	c := qt.New(t)
	trace := sim.NewTrace()
	r := mux.New(sim.NewRegister(trace, sim.TargetRoute), sim.NewRegister(trace, sim.TargetConfig), mux.PSoC4Layout(0, 1))
	trace.Reset()

	r.Set(mux.Grounded)
	c.Assert(trace.Writes, qt.HasLen, 0)

	r.Set(mux.Forward)
	n := len(trace.Writes)
	r.Set(mux.Forward)
	c.Assert(trace.Writes, qt.HasLen, n)
}

func TestInvalidState(t *testing.T) {
	c := qt.New(t)
	trace := sim.NewTrace()
	r := mux.New(sim.NewRegister(trace, sim.TargetRoute), sim.NewRegister(trace, sim.TargetConfig), mux.PSoC4Layout(0, 1))
	c.Assert(func() { r.Set(mux.State(7)) }, qt.PanicMatches, "mux: invalid state")
	c.Assert(mux.State(7).String(), qt.Equals, "invalid")
}
