// Package mux routes the stimulation current to the electrode pair. The
// router has exactly three exclusive states and moves between them with
// plain register writes.
package mux

// State is the routing of the current source to the two electrodes.
type State uint8

const (
	// Grounded disconnects the current source from both electrodes and
	// drives both electrode pins low.
	Grounded State = iota

	// Forward routes the current source to electrode B and uses electrode
	// A as the return path.
	Forward

	// Reverse is the mirror image of Forward.
	Reverse

	numStates
)

func (s State) String() string {
	switch s {
	case Grounded:
		return "grounded"
	case Forward:
		return "forward"
	case Reverse:
		return "reverse"
	default:
		return "invalid"
	}
}

// Register is a 32-bit hardware register. It is implemented by
// *volatile.Register32 on TinyGo targets.
type Register interface {
	Get() uint32
	Set(uint32)
}

// Router owns the analog routing register and the pin configuration
// register of the electrode port. It must only be used from a single
// non-reentrant context (the stimulation interrupt).
type Router struct {
	route  Register
	config Register
	layout Layout
	state  State
}

// New returns a router that has already forced both registers into the
// Grounded configuration.
func New(route, config Register, layout Layout) *Router {
	r := &Router{
		route:  route,
		config: config,
		layout: layout,
	}
	r.write(Grounded)
	return r
}

// State returns the state that was last written to the hardware.
func (r *Router) State() State {
	return r.state
}

// Set switches the routing to the given state. Setting the state that is
// already active does not touch the registers.
func (r *Router) Set(s State) {
	if s >= numStates {
		panic("mux: invalid state")
	}
	if s == r.state {
		return
	}
	r.write(s)
}

func (r *Router) write(s State) {
	// Disconnect or connect the analog path first, then change the pin
	// drive. Both writes happen before Set returns.
	r.layout.Route.apply(r.route, s)
	r.layout.Config.apply(r.config, s)
	r.state = s
}
