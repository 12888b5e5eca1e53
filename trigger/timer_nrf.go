//go:build tinygo && nrf52840

package trigger

import (
	"device/nrf"
	"runtime/interrupt"
	"time"
)

// TIMER1 runs at 16MHz >> 4 = 1MHz, so one tick is one microsecond.
const timerPrescaler = 4

// Priority 2 in the three priority bits. The SoftDevice reserves 0, 1 and
// 4; SWI2 (BLE events) runs at 6.
const timerPriority = 2 << 5

var timer struct {
	handler Handler
	period  uint32
	overrun uint32
}

// Timer is the TIMER1 trigger source. There is only one.
type Timer struct{}

// StartTimer starts TIMER1 and calls handler from its compare interrupt
// once per period. The compare register is moved forward only after the
// handler returns.
func StartTimer(cfg Config, handler Handler) *Timer {
	timer.handler = handler
	timer.period = uint32(cfg.Period / time.Microsecond)

	nrf.TIMER1.TASKS_STOP.Set(1)
	nrf.TIMER1.MODE.Set(nrf.TIMER_MODE_MODE_Timer)
	nrf.TIMER1.BITMODE.Set(nrf.TIMER_BITMODE_BITMODE_32Bit)
	nrf.TIMER1.PRESCALER.Set(timerPrescaler)
	nrf.TIMER1.TASKS_CLEAR.Set(1)
	nrf.TIMER1.EVENTS_COMPARE[0].Set(0)
	nrf.TIMER1.CC[0].Set(timer.period)
	nrf.TIMER1.INTENSET.Set(nrf.TIMER_INTENSET_COMPARE0_Msk)

	intr := interrupt.New(nrf.IRQ_TIMER1, handleTimer1)
	intr.SetPriority(timerPriority)
	intr.Enable()

	nrf.TIMER1.TASKS_START.Set(1)
	return &Timer{}
}

// Stop stops the timer. A handler call in flight completes.
func (*Timer) Stop() {
	nrf.TIMER1.INTENCLR.Set(nrf.TIMER_INTENCLR_COMPARE0_Msk)
	nrf.TIMER1.TASKS_STOP.Set(1)
}

// Overruns returns how often the handler ran past the next compare point.
func (*Timer) Overruns() uint32 {
	return timer.overrun
}

func handleTimer1(interrupt.Interrupt) {
	nrf.TIMER1.EVENTS_COMPARE[0].Set(0)

	timer.handler()

	next := nrf.TIMER1.CC[0].Get() + timer.period
	nrf.TIMER1.TASKS_CAPTURE[1].Set(1)
	now := nrf.TIMER1.CC[1].Get()
	if int32(next-now) <= 0 {
		// Setting a compare value in the past would only fire after the
		// counter wraps around.
		next = now + timer.period
		timer.overrun++
	}
	nrf.TIMER1.CC[0].Set(next)
}
