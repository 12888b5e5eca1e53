// Command stimctl finds stimulators over BLE, updates their firmware and
// runs the pulse sequencing against simulated hardware.
package main

import "github.com/tinygo-org/stimulator/cmd/stimctl/cmd"

func main() {
	cmd.Execute()
}
