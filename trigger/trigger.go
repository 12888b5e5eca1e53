// Package trigger provides the periodic source that fires the pulse
// sequencer.
//
// Sources re-arm only after the handler has returned, so a handler never
// overlaps itself. The period still has to be longer than a full pulse
// cycle, otherwise the source falls behind and the stimulation rate drops;
// Config.Validate checks this once at initialization.
package trigger

import (
	"errors"
	"fmt"
	"time"
)

var ErrPeriodTooShort = errors.New("trigger: period does not exceed pulse cycle")

// Defaults. The period is 2000 ticks of a 32 kHz low-frequency clock.
const (
	DefaultPeriod = 62500 * time.Microsecond
	DefaultMargin = 100 * time.Microsecond
)

// Config is the trigger cadence.
type Config struct {
	// Period between two consecutive triggers.
	Period time.Duration

	// Margin is the minimum idle time between the end of one cycle and the
	// next trigger. It covers register writes and interrupt latency that
	// are not part of the nominal cycle duration.
	Margin time.Duration
}

// DefaultConfig returns the default cadence.
func DefaultConfig() Config {
	return Config{Period: DefaultPeriod, Margin: DefaultMargin}
}

// Validate returns an error wrapping ErrPeriodTooShort if a cycle of the
// given duration plus the margin does not fit in one period.
func (c Config) Validate(cycle time.Duration) error {
	if c.Period <= 0 {
		return fmt.Errorf("trigger: invalid period %v", c.Period)
	}
	if c.Period <= cycle+c.Margin {
		return fmt.Errorf("%w: period %v, cycle %v, margin %v", ErrPeriodTooShort, c.Period, cycle, c.Margin)
	}
	return nil
}

// Handler is called once per period.
type Handler func()
