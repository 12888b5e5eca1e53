//go:build tinygo && nrf52840

// Package board wires the stimulator to an nRF52840: the electrode pair
// behind an external analog switch, a MCP4018 setting the current source,
// and the board LED as the cycle indicator.
package board

import (
	"device/arm"
	"device/nrf"
	"machine"
	"time"

	"tinygo.org/x/drivers/delay"

	"github.com/tinygo-org/stimulator/dac"
	"github.com/tinygo-org/stimulator/mux"
)

// Port 0 bit numbers.
const (
	electrodeA = 3
	electrodeB = 4
	switchA    = 28 // analog switch enable, current source to electrode A
	switchB    = 29 // analog switch enable, current source to electrode B
)

var (
	sda = machine.P0_26
	scl = machine.P0_27
)

const i2cFrequency = 400 * machine.KHz

// DACWriteLatency is the duration of one rheostat write on the I2C bus,
// about 50µs. It is not negligible against a 57µs phase: pass it to the
// sequencer so the phase waits are shortened by it.
var DACWriteLatency = dac.RheostatWriteTime(i2cFrequency)

// Board holds the stimulation hardware after initialization.
type Board struct {
	Router *mux.Router
	DAC    *dac.Rheostat
	LED    machine.Pin
}

// Init brings the outputs into a safe state: current source at 0,
// electrodes driven low, analog switch open. It must run before
// interrupts that use the board are enabled.
func Init() (*Board, error) {
	b := &Board{LED: machine.LED}
	b.LED.Configure(machine.PinConfig{Mode: machine.PinOutput})
	b.LED.Low()

	err := machine.I2C0.Configure(machine.I2CConfig{
		Frequency: i2cFrequency,
		SDA:       sda,
		SCL:       scl,
	})
	if err != nil {
		return nil, err
	}
	b.DAC = dac.NewRheostat(machine.I2C0)
	if err := b.DAC.Start(); err != nil {
		return nil, err
	}

	// The electrodes never need the input buffer. Both start low and as
	// inputs; the router turns them into outputs.
	const electrodes = 1<<electrodeA | 1<<electrodeB
	const switches = 1<<switchA | 1<<switchB
	for _, pin := range []int{electrodeA, electrodeB} {
		nrf.P0.PIN_CNF[pin].Set(nrf.GPIO_PIN_CNF_DIR_Input<<nrf.GPIO_PIN_CNF_DIR_Pos |
			nrf.GPIO_PIN_CNF_INPUT_Disconnect<<nrf.GPIO_PIN_CNF_INPUT_Pos)
	}
	nrf.P0.OUTCLR.Set(electrodes | switches)
	nrf.P0.DIRSET.Set(switches)

	b.Router = mux.New(&nrf.P0.OUT, &nrf.P0.DIR, mux.SwitchLayout(switchA, switchB, electrodeA, electrodeB))
	return b, nil
}

// Wait busy-waits for d. It is the pulse timing used in interrupt context.
func Wait(d time.Duration) {
	delay.Sleep(d)
}

// Safe zeroes the current source and grounds the electrodes. DAC errors
// are ignored here: the switch is opened regardless.
func (b *Board) Safe() {
	b.DAC.SetValue(0)
	b.Router.Set(mux.Grounded)
	b.LED.Low()
}

// Fault makes the outputs safe, shows the fault pattern and resets. It is
// safe to call from interrupt context and does not return.
func (b *Board) Fault(err error) {
	println("fault:", err.Error())
	b.Safe()
	// Three short flashes, distinct from the one flash per pulse cycle.
	for i := 0; i < 3; i++ {
		b.LED.High()
		hold(100 * time.Millisecond)
		b.LED.Low()
		hold(100 * time.Millisecond)
	}
	arm.SystemReset()
}

// hold busy-waits in steps short enough for delay.Sleep to spin instead of
// calling time.Sleep, which is not usable from an interrupt.
func hold(d time.Duration) {
	for ; d > 0; d -= 10 * time.Millisecond {
		delay.Sleep(10 * time.Millisecond)
	}
}

// Halt is used when Init itself fails and there is no Board.
func Halt(err error) {
	println("fault:", err.Error())
	arm.SystemReset()
}
