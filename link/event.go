// Package link keeps the device discoverable: it follows the connection
// state reported by the BLE stack and restarts advertising whenever the
// device is not connected.
package link

// Event is a BLE stack lifecycle event. Anything the controller does not
// act on is EventIgnored.
type Event uint8

const (
	EventIgnored Event = iota
	EventStackReady
	EventDisconnected
	EventConnectRequested

	numEvents
)

func (e Event) String() string {
	switch e {
	case EventStackReady:
		return "stack-ready"
	case EventDisconnected:
		return "disconnected"
	case EventConnectRequested:
		return "connect-requested"
	default:
		return "ignored"
	}
}

// normalize maps values outside the known set to EventIgnored.
func (e Event) normalize() Event {
	if e >= numEvents {
		return EventIgnored
	}
	return e
}

// State is the connection state.
type State uint8

const (
	Idle State = iota
	Advertising
	Connected

	numStates
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Advertising:
		return "advertising"
	case Connected:
		return "connected"
	default:
		return "invalid"
	}
}

// AdvertisingMode selects the advertising interval.
type AdvertisingMode uint8

const (
	AdvertisingFast AdvertisingMode = iota
	AdvertisingSlow
)

func (m AdvertisingMode) String() string {
	if m == AdvertisingSlow {
		return "slow"
	}
	return "fast"
}

// PowerMode is the low-power state entered between events.
type PowerMode uint8

const (
	// PowerSleep waits for the next event or interrupt with the CPU halted.
	PowerSleep PowerMode = iota

	// PowerDeepSleep is accepted for stacks that distinguish it; it must
	// still wake on the trigger interrupt.
	PowerDeepSleep
)
