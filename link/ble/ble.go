// Package ble implements link.Stack on top of tinygo.org/x/bluetooth.
//
// The SoftDevice delivers connection events from its event interrupt. They
// are only queued there; ProcessEvents hands them to the controller on the
// main loop.
package ble

import (
	"errors"
	"fmt"
	"time"

	"tinygo.org/x/bluetooth"

	"github.com/tinygo-org/stimulator/link"
)

// Advertising intervals. The fast one is the 20ms Apple recommends for the
// first 30 seconds, the slow one is the 152.5ms from the same guidelines.
const (
	FastInterval = 20 * time.Millisecond
	SlowInterval = 152500 * time.Microsecond
)

var errNotStarted = errors.New("ble: advertising before the stack was started")

var _ link.Stack = (*Stack)(nil)

// Stack is a link.Stack backed by a bluetooth.Adapter.
type Stack struct {
	adapter *bluetooth.Adapter
	adv     *bluetooth.Advertisement

	// Options is the advertisement content. Interval is set per mode.
	Options bluetooth.AdvertisementOptions

	queue   link.Queue
	handler func(link.Event)

	configured  bool
	mode        link.AdvertisingMode
	advertising bool
}

// New returns a stack on the given adapter, usually
// bluetooth.DefaultAdapter.
func New(adapter *bluetooth.Adapter, options bluetooth.AdvertisementOptions) *Stack {
	return &Stack{
		adapter: adapter,
		Options: options,
	}
}

// Start enables the adapter and queues EventStackReady.
func (s *Stack) Start(handler func(link.Event)) error {
	s.handler = handler
	s.adapter.SetConnectHandler(s.onConnect)
	if err := s.adapter.Enable(); err != nil {
		return fmt.Errorf("ble: could not enable adapter: %w", err)
	}
	s.adv = s.adapter.DefaultAdvertisement()
	s.queue.Push(link.EventStackReady)
	return nil
}

// onConnect runs in the stack's event context.
func (s *Stack) onConnect(device bluetooth.Device, connected bool) {
	if connected {
		s.queue.Push(link.EventConnectRequested)
	} else {
		s.queue.Push(link.EventDisconnected)
	}
}

// ProcessEvents hands queued events to the handler.
func (s *Stack) ProcessEvents() {
	if s.handler == nil {
		return
	}
	s.queue.Drain(s.handler)
}

// Dropped returns the number of events lost because the main loop did not
// keep up.
func (s *Stack) Dropped() uint32 {
	return s.queue.Dropped()
}

// EnterLowPower waits for the next interrupt. Both modes are the same
// here: with the SoftDevice enabled the application may only idle in
// System ON with WFE, and the SoftDevice itself stops the clocks it does
// not need. System OFF would lose the trigger.
func (s *Stack) EnterLowPower(mode link.PowerMode) {
	if s.queue.Len() > 0 {
		return
	}
	waitForInterrupt()
}

// StartAdvertising (re)starts the default advertisement. The
// advertisement is configured again only when the interval changes. If it
// is already running it is restarted, so calling this twice is harmless.
func (s *Stack) StartAdvertising(mode link.AdvertisingMode) error {
	if s.adv == nil {
		return errNotStarted
	}
	if s.advertising {
		// The SoftDevice may have restarted it on its own after a
		// disconnect; Start on a running advertisement is an error.
		s.adv.Stop()
		s.advertising = false
	}
	if !s.configured || s.mode != mode {
		opts := s.Options
		opts.Interval = bluetooth.NewDuration(interval(mode))
		if err := s.adv.Configure(opts); err != nil {
			return fmt.Errorf("ble: could not configure advertisement: %w", err)
		}
		s.configured = true
		s.mode = mode
	}
	if err := s.adv.Start(); err != nil {
		return fmt.Errorf("ble: could not start advertisement: %w", err)
	}
	s.advertising = true
	return nil
}

func interval(mode link.AdvertisingMode) time.Duration {
	if mode == link.AdvertisingSlow {
		return SlowInterval
	}
	return FastInterval
}
