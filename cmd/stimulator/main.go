//go:build tinygo && nrf52840

// Command stimulator is the firmware. Flash it with the SoftDevice
// present, for example:
//
//	tinygo flash -target=pca10056-s140v7 ./cmd/stimulator
package main

import (
	"tinygo.org/x/bluetooth"

	"github.com/tinygo-org/stimulator/beacon"
	"github.com/tinygo-org/stimulator/board"
	"github.com/tinygo-org/stimulator/dfuservice"
	"github.com/tinygo-org/stimulator/link"
	"github.com/tinygo-org/stimulator/link/ble"
	"github.com/tinygo-org/stimulator/stimulus"
	"github.com/tinygo-org/stimulator/trigger"
)

// LocalName is the advertised name. Override with
// -ldflags="-X main.LocalName=stim-left". It must stay short: the
// advertisement also carries the beacon.
var LocalName = "stimulator"

func main() {
	println("start")

	// Outputs first: nothing may be able to fire a pulse before the
	// current source is at zero and the electrodes are grounded.
	b, err := board.Init()
	if err != nil {
		board.Halt(err)
	}

	seq := stimulus.New(b.Router, b.DAC, b.LED, stimulus.Config{
		Pulse:        stimulus.DefaultPulse,
		Settle:       stimulus.DefaultSettle,
		WriteLatency: board.DACWriteLatency,
		Wait:         board.Wait,
		Fault:        b.Fault,
	})
	cadence := trigger.DefaultConfig()
	if err := cadence.Validate(seq.Busy()); err != nil {
		b.Fault(err)
	}

	adapter := bluetooth.DefaultAdapter
	stack := ble.New(adapter, bluetooth.AdvertisementOptions{
		LocalName: LocalName,
		ManufacturerData: []bluetooth.ManufacturerDataElement{
			beacon.Beacon{Pulse: seq.Pulse(), Settle: seq.Settle(), Period: cadence.Period}.Element(),
		},
	})
	ctrl := link.NewController(stack)
	ctrl.OnFault = b.Fault
	loop := link.NewLoop(stack, ctrl)
	if err := loop.Start(); err != nil {
		b.Fault(err)
	}

	var tmr *trigger.Timer
	err = dfuservice.AddService(adapter, func() {
		if tmr != nil {
			tmr.Stop()
		}
		b.Safe()
	})
	if err != nil {
		b.Fault(err)
	}

	tmr = trigger.StartTimer(cadence, seq.Fire)
	println("running, period", cadence.Period.String())

	loop.Run()
}
