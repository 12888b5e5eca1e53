// Package sim provides instrumented stand-ins for the stimulator hardware
// so the pulse sequencing and the connection handling can be exercised
// and checked on a host.
//
// All writes land in a shared Trace stamped with a virtual Clock that only
// advances through busy-waits.
package sim

import (
	"fmt"
	"strings"
	"time"
)

// Clock is a virtual monotonic clock.
type Clock struct {
	now time.Duration
}

// Now returns the time elapsed since the clock was created.
func (c *Clock) Now() time.Duration {
	return c.now
}

// Wait advances the clock by d. It has the signature of a busy-wait.
func (c *Clock) Wait(d time.Duration) {
	c.now += d
}

// Target identifies the hardware resource touched by a write.
type Target uint8

const (
	TargetRoute Target = iota
	TargetConfig
	TargetDAC
	TargetIndicator
)

func (t Target) String() string {
	switch t {
	case TargetRoute:
		return "route"
	case TargetConfig:
		return "config"
	case TargetDAC:
		return "dac"
	case TargetIndicator:
		return "led"
	default:
		return "?"
	}
}

// Write is one recorded hardware write.
type Write struct {
	At     time.Duration
	Target Target
	Value  uint32
}

func (w Write) String() string {
	return fmt.Sprintf("%8.1fus %-6s 0x%08x", float64(w.At)/float64(time.Microsecond), w.Target, w.Value)
}

// Trace is the ordered record of hardware writes.
type Trace struct {
	Clock  *Clock
	Writes []Write
}

// NewTrace returns an empty trace on a fresh clock.
func NewTrace() *Trace {
	return &Trace{Clock: &Clock{}}
}

func (t *Trace) record(target Target, value uint32) {
	t.Writes = append(t.Writes, Write{At: t.Clock.Now(), Target: target, Value: value})
}

// Reset drops all recorded writes. The clock keeps running.
func (t *Trace) Reset() {
	t.Writes = t.Writes[:0]
}

// Count returns the number of writes to the given target.
func (t *Trace) Count(target Target) int {
	n := 0
	for _, w := range t.Writes {
		if w.Target == target {
			n++
		}
	}
	return n
}

func (t *Trace) String() string {
	var b strings.Builder
	for _, w := range t.Writes {
		b.WriteString(w.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Register is a recording 32-bit register.
type Register struct {
	trace  *Trace
	target Target
	value  uint32
}

// NewRegister returns a register whose writes are recorded under target.
func NewRegister(trace *Trace, target Target) *Register {
	return &Register{trace: trace, target: target}
}

func (r *Register) Get() uint32 {
	return r.value
}

func (r *Register) Set(v uint32) {
	r.value = v
	r.trace.record(r.target, v)
}

// Pin is a recording digital output.
type Pin struct {
	trace *Trace
	high  bool
}

// NewPin returns an output pin recorded as TargetIndicator.
func NewPin(trace *Trace) *Pin {
	return &Pin{trace: trace}
}

func (p *Pin) Set(high bool) {
	p.high = high
	v := uint32(0)
	if high {
		v = 1
	}
	p.trace.record(TargetIndicator, v)
}

func (p *Pin) Get() bool {
	return p.high
}
