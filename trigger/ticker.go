//go:build !baremetal

package trigger

import (
	"sync"
	"time"
)

// Ticker is a trigger source for hosts. The timer is re-armed after the
// handler returns, so a slow handler delays the next trigger instead of
// running concurrently with itself.
type Ticker struct {
	period  time.Duration
	handler Handler

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
	done    chan struct{}
	fired   uint32
}

// NewTicker starts calling handler every period.
func NewTicker(cfg Config, handler Handler) *Ticker {
	t := &Ticker{
		period:  cfg.Period,
		handler: handler,
		done:    make(chan struct{}),
	}
	t.mu.Lock()
	t.timer = time.AfterFunc(t.period, t.fire)
	t.mu.Unlock()
	return t
}

func (t *Ticker) fire() {
	t.mu.Lock()
	if t.stopped {
		close(t.done)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()

	t.handler()

	t.mu.Lock()
	defer t.mu.Unlock()
	t.fired++
	if t.stopped {
		close(t.done)
		return
	}
	t.timer.Reset(t.period)
}

// Fired returns the number of completed handler calls.
func (t *Ticker) Fired() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}

// Stop stops the ticker. If a handler call is in flight, Stop waits for it
// to return.
func (t *Ticker) Stop() {
	t.mu.Lock()
	if t.stopped {
		t.mu.Unlock()
		return
	}
	t.stopped = true
	if t.timer.Stop() {
		// Not in flight: no one else will close done.
		close(t.done)
	}
	t.mu.Unlock()
	<-t.done
}
