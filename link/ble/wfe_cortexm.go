//go:build tinygo && cortexm

package ble

import "device/arm"

// waitForInterrupt uses WFE rather than WFI: the SoftDevice signals pending
// events with SEV.
func waitForInterrupt() {
	arm.Asm("wfe")
}
