package link

import (
	"errors"
	"fmt"
)

const debug = false

// ErrBacklogFull is reported when too many events arrive while a
// transition is still executing.
var ErrBacklogFull = errors.New("link: event backlog full")

// Advertiser starts advertising.
type Advertiser interface {
	StartAdvertising(AdvertisingMode) error
}

type transition struct {
	valid     bool
	to        State
	advertise bool
}

// transitions[from][event]. Pairs that are not listed leave the state
// alone and issue no command.
var transitions = [numStates][numEvents]transition{
	Idle: {
		EventStackReady: {valid: true, to: Advertising, advertise: true},
	},
	Advertising: {
		EventConnectRequested: {valid: true, to: Connected},
		// The stack may report a disconnect for a connection that never
		// completed. Advertising again is harmless.
		EventDisconnected: {valid: true, to: Advertising, advertise: true},
	},
	Connected: {
		EventDisconnected: {valid: true, to: Advertising, advertise: true},
	},
}

// Controller is the connection state machine. It is driven only by
// events from the BLE stack and must be called from the main loop.
type Controller struct {
	adv   Advertiser
	state State

	// OnFault receives errors from advertising commands and backlog
	// overflows. The default prints them.
	OnFault func(error)

	dispatching bool
	backlog     [4]Event
	head, n     int

	commands uint32
}

// NewController returns a controller in the Idle state. It must be created
// before the BLE stack is started.
func NewController(adv Advertiser) *Controller {
	return &Controller{
		adv:   adv,
		state: Idle,
		OnFault: func(err error) {
			println("link:", err.Error())
		},
	}
}

// State returns the current connection state.
func (c *Controller) State() State {
	return c.state
}

// Commands returns how many advertising commands have been issued.
func (c *Controller) Commands() uint32 {
	return c.commands
}

// Handle applies one event. It never blocks. If it is called again while a
// transition is running (for example because the advertiser delivered an
// event synchronously) the nested event is applied after the current one,
// before the outer call returns.
func (c *Controller) Handle(ev Event) {
	if c.dispatching {
		c.postpone(ev)
		return
	}
	c.dispatching = true
	c.apply(ev)
	for c.n > 0 {
		ev := c.backlog[c.head]
		c.head = (c.head + 1) % len(c.backlog)
		c.n--
		c.apply(ev)
	}
	c.dispatching = false
}

func (c *Controller) postpone(ev Event) {
	if c.n == len(c.backlog) {
		c.OnFault(fmt.Errorf("%w: dropped %s", ErrBacklogFull, ev))
		return
	}
	c.backlog[(c.head+c.n)%len(c.backlog)] = ev
	c.n++
}

func (c *Controller) apply(ev Event) {
	ev = ev.normalize()
	t := transitions[c.state][ev]
	if !t.valid {
		if debug {
			println("link: ignore", ev.String(), "in", c.state.String())
		}
		return
	}
	if debug {
		println("link:", c.state.String(), "->", t.to.String(), "on", ev.String())
	}
	c.state = t.to
	if t.advertise {
		c.commands++
		if err := c.adv.StartAdvertising(AdvertisingFast); err != nil {
			c.OnFault(fmt.Errorf("link: start advertising: %w", err))
		}
	}
}
