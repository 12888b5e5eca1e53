package sim

import (
	"github.com/tinygo-org/stimulator/link"
)

// Stack is a scripted BLE stack. Events handed to Deliver are queued like
// the real stack does from its interrupt and reach the handler on the next
// ProcessEvents.
type Stack struct {
	// StartErr is returned by Start. AdvertiseErr is returned by every
	// StartAdvertising call.
	StartErr     error
	AdvertiseErr error

	// OnAdvertise, if set, runs inside StartAdvertising. Tests use it to
	// deliver events synchronously from within a command.
	OnAdvertise func()

	Advertised []link.AdvertisingMode
	Sleeps     int
	Pumps      int

	// Power is the mode of the last EnterLowPower call.
	Power link.PowerMode

	queue   link.Queue
	handler func(link.Event)
}

var _ link.Stack = (*Stack)(nil)

// Start registers the handler and queues EventStackReady.
func (s *Stack) Start(handler func(link.Event)) error {
	if s.StartErr != nil {
		return s.StartErr
	}
	s.handler = handler
	s.queue.Push(link.EventStackReady)
	return nil
}

// Deliver queues an event as if the radio had produced it.
func (s *Stack) Deliver(events ...link.Event) {
	for _, ev := range events {
		s.queue.Push(ev)
	}
}

// Handler returns the registered event handler, or nil before Start.
func (s *Stack) Handler() func(link.Event) {
	return s.handler
}

func (s *Stack) ProcessEvents() {
	s.Pumps++
	if s.handler == nil {
		return
	}
	s.queue.Drain(s.handler)
}

func (s *Stack) EnterLowPower(mode link.PowerMode) {
	s.Sleeps++
	s.Power = mode
}

func (s *Stack) StartAdvertising(mode link.AdvertisingMode) error {
	s.Advertised = append(s.Advertised, mode)
	if s.OnAdvertise != nil {
		s.OnAdvertise()
	}
	return s.AdvertiseErr
}
