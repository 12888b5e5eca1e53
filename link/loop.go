package link

// Stack is the BLE protocol stack as seen by the main loop.
type Stack interface {
	Advertiser

	// Start brings up the stack. Events are delivered to handler, always
	// from within ProcessEvents.
	Start(handler func(Event)) error

	// ProcessEvents delivers pending events to the handler.
	ProcessEvents()

	// EnterLowPower halts until the next event or interrupt.
	EnterLowPower(PowerMode)
}

// Loop is the main loop: pump BLE events, then sleep.
type Loop struct {
	stack Stack
	ctrl  *Controller

	// Power is passed to EnterLowPower after every pump. It defaults to
	// PowerDeepSleep; nothing runs on the main loop between events.
	Power PowerMode

	steps uint32
}

// NewLoop returns a main loop for the given stack. The controller should
// have been created with the same stack as its advertiser.
func NewLoop(stack Stack, ctrl *Controller) *Loop {
	return &Loop{stack: stack, ctrl: ctrl, Power: PowerDeepSleep}
}

// Start starts the stack with the controller as the event handler.
func (l *Loop) Start() error {
	return l.stack.Start(l.ctrl.Handle)
}

// Step runs one iteration of the main loop.
func (l *Loop) Step() {
	l.stack.ProcessEvents()
	l.stack.EnterLowPower(l.Power)
	l.steps++
}

// Steps returns the number of completed iterations.
func (l *Loop) Steps() uint32 {
	return l.steps
}

// Run runs the main loop forever.
func (l *Loop) Run() {
	for {
		l.Step()
	}
}
