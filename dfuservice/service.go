//go:build tinygo && nrf

package dfuservice

import (
	"device/arm"
	"device/nrf"

	"tinygo.org/x/bluetooth"
)

// AddService adds the stub DFU service.
//
// safe is called before the reset, from the SoftDevice event context. It
// must leave the stimulation outputs grounded and stop the trigger so no
// pulse is cut short by the reset.
func AddService(adapter *bluetooth.Adapter, safe func()) error {
	return adapter.AddService(&bluetooth.Service{
		UUID: ServiceUUID,
		Characteristics: []bluetooth.CharacteristicConfig{
			{
				UUID:  CommandUUID,
				Flags: bluetooth.CharacteristicWritePermission | bluetooth.CharacteristicNotifyPermission,
				WriteEvent: func(client bluetooth.Connection, offset int, value []byte) {
					if isResetBootloader(offset, value) {
						EnterBootloader(safe)
					}
				},
			},
			{
				// Present so BlueZ does not serve a stale service cache
				// when the bootloader shows up with the same address.
				UUID:  DataUUID,
				Flags: bluetooth.CharacteristicWriteWithoutResponsePermission,
			},
		},
	})
}

// EnterBootloader resets the chip into DFU mode. It does not return.
func EnterBootloader(safe func()) {
	if safe != nil {
		safe()
	}

	// GPREGRET is only writable with the SoftDevice disabled. SVCall 0x11
	// is SD_SOFTDEVICE_DISABLE in s110v8, s132v6 and s140v7.
	arm.SVCall0(0x11)

	// The bootloader enters DFU mode instead of starting the application
	// when the low bit is set.
	nrf.POWER.GPREGRET.Set(1)

	arm.SystemReset()
}
