//go:build !(tinygo && cortexm)

package ble

import "time"

// Hosts have no interrupt to wait for; BlueZ delivers events on its own
// goroutines.
func waitForInterrupt() {
	time.Sleep(time.Millisecond)
}
