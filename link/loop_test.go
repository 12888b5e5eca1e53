package link_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/tinygo-org/stimulator/link"
	"github.com/tinygo-org/stimulator/sim"
)

func TestLoopPumpsThenSleeps(t *testing.T) {
	c := qt.New(t)
	stack := &sim.Stack{}
	ctrl, _ := newController(stack)
	loop := link.NewLoop(stack, ctrl)

	c.Assert(loop.Start(), qt.IsNil)
	// Nothing is delivered outside the pump.
	c.Assert(ctrl.State(), qt.Equals, link.Idle)

	loop.Step()
	c.Assert(ctrl.State(), qt.Equals, link.Advertising)
	c.Assert(stack.Pumps, qt.Equals, 1)
	c.Assert(stack.Sleeps, qt.Equals, 1)
	c.Assert(stack.Power, qt.Equals, link.PowerDeepSleep)

	stack.Deliver(link.EventConnectRequested, link.EventDisconnected)
	loop.Step()
	c.Assert(ctrl.State(), qt.Equals, link.Advertising)
	c.Assert(stack.Advertised, qt.HasLen, 2)

	loop.Step()
	c.Assert(stack.Advertised, qt.HasLen, 2)
	c.Assert(loop.Steps(), qt.Equals, uint32(3))
}

func TestLoopStartError(t *testing.T) {
	c := qt.New(t)
	stack := &sim.Stack{StartErr: errors.New("no softdevice")}
	ctrl, _ := newController(stack)
	loop := link.NewLoop(stack, ctrl)

	c.Assert(loop.Start(), qt.ErrorMatches, "no softdevice")
	loop.Step()
	c.Assert(ctrl.State(), qt.Equals, link.Idle)
}

func TestLoopPowerMode(t *testing.T) {
	c := qt.New(t)
	stack := &sim.Stack{}
	ctrl, _ := newController(stack)
	loop := link.NewLoop(stack, ctrl)
	c.Assert(loop.Power, qt.Equals, link.PowerDeepSleep)

	loop.Power = link.PowerSleep
	loop.Step()
	c.Assert(stack.Power, qt.Equals, link.PowerSleep)
}
