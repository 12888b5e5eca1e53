package sim

import (
	"fmt"
	"time"

	"github.com/tinygo-org/stimulator/dac"
	"github.com/tinygo-org/stimulator/mux"
)

// Bench is the stimulation output stage wired to recording registers: an
// on-chip IDAC, the mux registers and the indicator LED.
type Bench struct {
	Trace  *Trace
	Layout mux.Layout

	Route  *Register
	Config *Register
	DACReg *Register

	Router *mux.Router
	DAC    *dac.IDAC
	LED    *Pin
}

// NewBench brings up the output stage in the same order as the firmware:
// DAC started at code 0, then the mux grounded.
func NewBench(layout mux.Layout) (*Bench, error) {
	t := NewTrace()
	b := &Bench{
		Trace:  t,
		Layout: layout,
		Route:  NewRegister(t, TargetRoute),
		Config: NewRegister(t, TargetConfig),
		DACReg: NewRegister(t, TargetDAC),
		LED:    NewPin(t),
	}
	b.DAC = dac.NewIDAC(b.DACReg)
	if err := b.DAC.Start(); err != nil {
		return nil, err
	}
	b.Router = mux.New(b.Route, b.Config, layout)
	return b, nil
}

// Wait advances the bench clock. Pass it as the sequencer busy-wait.
func (b *Bench) Wait(d time.Duration) {
	b.Trace.Clock.Wait(d)
}

// Phase is one interval during which the DAC output was non-zero.
type Phase struct {
	State mux.State
	Code  uint8
	Start time.Duration
	Width time.Duration
}

// Report is the result of analysing a trace.
type Report struct {
	Cycles     int
	Phases     []Phase
	CycleTimes []time.Duration
	Routes     []mux.State
	Violations []string
}

// OK reports whether no safety property was violated.
func (r *Report) OK() bool {
	return len(r.Violations) == 0
}

func (r *Report) violate(format string, args ...interface{}) {
	r.Violations = append(r.Violations, fmt.Sprintf(format, args...))
}

// Analyze checks the recorded trace:
//   - the DAC code is 0 whenever a mux register is written
//   - forward and reverse are always separated by grounded
//   - each cycle has a forward phase and a reverse phase of equal width
//     and code, or no current at all
func (b *Bench) Analyze() *Report {
	r := &Report{}
	var (
		code      uint8
		route     = mux.Grounded
		phase     *Phase
		cycleFrom time.Duration
		inCycle   bool
		cyclePh   []Phase
	)
	for _, w := range b.Trace.Writes {
		switch w.Target {
		case TargetRoute, TargetConfig:
			if code != 0 {
				r.violate("%s written at %v while dac code is %d", w.Target, w.At, code)
			}
			if w.Target != TargetRoute {
				continue
			}
			next, ok := b.decodeRoute(w.Value)
			if !ok {
				r.violate("unknown route value 0x%08x at %v", w.Value, w.At)
				continue
			}
			if next == route {
				continue
			}
			if route != mux.Grounded && next != mux.Grounded {
				r.violate("route %s -> %s without grounding at %v", route, next, w.At)
			}
			route = next
			r.Routes = append(r.Routes, next)
		case TargetDAC:
			next := uint8(w.Value & dac.MaxCode)
			switch {
			case code == 0 && next != 0:
				phase = &Phase{State: route, Code: next, Start: w.At}
			case code != 0 && next == 0 && phase != nil:
				phase.Width = w.At - phase.Start
				r.Phases = append(r.Phases, *phase)
				cyclePh = append(cyclePh, *phase)
				phase = nil
			}
			code = next
		case TargetIndicator:
			if w.Value != 0 {
				inCycle = true
				cycleFrom = w.At
				cyclePh = cyclePh[:0]
				continue
			}
			if !inCycle {
				continue
			}
			inCycle = false
			r.Cycles++
			r.CycleTimes = append(r.CycleTimes, w.At-cycleFrom)
			checkCycle(r, cyclePh)
		}
	}
	if code != 0 {
		r.violate("dac left at code %d", code)
	}
	if route != mux.Grounded {
		r.violate("mux left in %s", route)
	}
	return r
}

func checkCycle(r *Report, phases []Phase) {
	if len(phases) == 0 {
		// No current flowed, which is balanced.
		return
	}
	if len(phases) != 2 {
		r.violate("cycle %d has %d phases", r.Cycles, len(phases))
		return
	}
	fwd, rev := phases[0], phases[1]
	if fwd.State != mux.Forward || rev.State != mux.Reverse {
		r.violate("cycle %d phases are %s, %s", r.Cycles, fwd.State, rev.State)
	}
	if fwd.Width != rev.Width || fwd.Code != rev.Code {
		r.violate("cycle %d is asymmetric: %d for %v, %d for %v", r.Cycles, fwd.Code, fwd.Width, rev.Code, rev.Width)
	}
}

func (b *Bench) decodeRoute(v uint32) (mux.State, bool) {
	f := b.Layout.Route
	for s := mux.Grounded; s <= mux.Reverse; s++ {
		if v&f.Mask == f.Values[s] {
			return s, true
		}
	}
	return 0, false
}
