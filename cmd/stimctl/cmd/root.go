package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"
)

var (
	// Global flags
	verbose bool
)

var adapter = bluetooth.DefaultAdapter

var rootCmd = &cobra.Command{
	Use:   "stimctl",
	Short: "Bipolar stimulator host tool",
	Long: `Find bipolar stimulators over BLE, update their firmware, and run the
pulse sequencing against simulated hardware.

Examples:
  stimctl scan --timeout 5s                 # List nearby stimulators
  stimctl dfu firmware.elf                  # Update the first stimulator found
  stimctl simulate --cycles 3 --trace       # Show the register writes of 3 cycles`,
	SilenceUsage: true,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
