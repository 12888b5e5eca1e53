package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/tinygo-org/stimulator/beacon"
)

var scanTimeout time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "List nearby stimulators and their advertised pulse settings",
	Long: `Scan for BLE advertisements carrying the stimulator beacon and print
each device once with its pulse amplitude, phase width, settle gap and
trigger period.

Examples:
  stimctl scan
  stimctl scan --timeout 30s`,
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().DurationVarP(&scanTimeout, "timeout", "t", 10*time.Second, "how long to scan")
}

// found is one stimulator seen during a scan.
type found struct {
	Address bluetooth.Address
	Name    string
	RSSI    int16
	Beacon  beacon.Beacon
}

func runScan(cmd *cobra.Command, args []string) error {
	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("could not enable BLE adapter: %w", err)
	}

	out := cmd.OutOrStdout()
	seen := map[string]bool{}
	timer := time.AfterFunc(scanTimeout, func() {
		adapter.StopScan()
	})
	defer timer.Stop()

	fmt.Fprintf(out, "Scanning for %v...\n", scanTimeout)
	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		f, ok := stimulatorFrom(result)
		if !ok {
			if verbose {
				fmt.Fprintf(out, "ignoring %s\n", result.Address)
			}
			return
		}
		key := f.Address.String()
		if seen[key] {
			return
		}
		seen[key] = true
		printFound(out, f)
	})
	if err != nil {
		return fmt.Errorf("could not start a scan: %w", err)
	}
	fmt.Fprintf(out, "Found %d stimulator(s)\n", len(seen))
	return nil
}

func stimulatorFrom(result bluetooth.ScanResult) (found, bool) {
	b, err := beacon.Find(result.ManufacturerData())
	if err != nil {
		return found{}, false
	}
	return found{
		Address: result.Address,
		Name:    result.LocalName(),
		RSSI:    result.RSSI,
		Beacon:  b,
	}, true
}

func printFound(w io.Writer, f found) {
	name := f.Name
	if name == "" {
		name = "(no name)"
	}
	fmt.Fprintf(w, "%s  %-16s %4d dBm  %s\n", f.Address, name, f.RSSI, f.Beacon)
}
