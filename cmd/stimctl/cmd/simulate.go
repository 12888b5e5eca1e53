package cmd

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/tinygo-org/stimulator/link"
	"github.com/tinygo-org/stimulator/mux"
	"github.com/tinygo-org/stimulator/sim"
	"github.com/tinygo-org/stimulator/stimulus"
	"github.com/tinygo-org/stimulator/trigger"
)

var (
	simCycles    int
	simAmplitude uint8
	simWidth     time.Duration
	simSettle    time.Duration
	simPeriod    time.Duration
	simMargin    time.Duration
	simLayout    string
	simEvents    []string
	simTrace     bool
	simRealtime  bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the pulse sequencer and link controller against simulated hardware",
	Long: `Drive the firmware's sequencer, mux router and connection controller
with recording registers and a scripted BLE stack, then check the
recorded writes: the DAC must be at zero whenever the mux changes, the
forward and reverse phases must be separated by grounding and every
cycle must be charge balanced.

Events are delivered one per cycle, before the cycle fires. Recognized
events: ready, connect, disconnect, ignored (alias: write).

Examples:
  stimctl simulate --cycles 3
  stimctl simulate --amplitude 64 --width 100us --trace
  stimctl simulate --events connect,disconnect,write --layout psoc4
  stimctl simulate --realtime --period 10ms --cycles 20`,
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
	simulateCmd.Flags().IntVarP(&simCycles, "cycles", "n", 3, "number of pulse cycles to fire")
	simulateCmd.Flags().Uint8VarP(&simAmplitude, "amplitude", "a", stimulus.DefaultPulse.Amplitude, "DAC code during each phase")
	simulateCmd.Flags().DurationVarP(&simWidth, "width", "w", stimulus.DefaultPulse.Width, "width of each phase")
	simulateCmd.Flags().DurationVar(&simSettle, "settle", stimulus.DefaultSettle, "grounded gap between the phases")
	simulateCmd.Flags().DurationVarP(&simPeriod, "period", "p", trigger.DefaultPeriod, "trigger period")
	simulateCmd.Flags().DurationVar(&simMargin, "margin", trigger.DefaultMargin, "minimum idle time per period")
	simulateCmd.Flags().StringVarP(&simLayout, "layout", "l", "switch", "mux register layout: switch or psoc4")
	simulateCmd.Flags().StringSliceVarP(&simEvents, "events", "e", nil, "BLE events to deliver, one per cycle")
	simulateCmd.Flags().BoolVar(&simTrace, "trace", false, "print every recorded register write")
	simulateCmd.Flags().BoolVar(&simRealtime, "realtime", false, "pace the cycles with a wall clock ticker")
}

// Pin numbers of the nRF52840 board.
const (
	switchSelA = 28
	switchSelB = 29
	electrodeA = 3
	electrodeB = 4
)

func parseLayout(name string) (mux.Layout, error) {
	switch name {
	case "switch":
		return mux.SwitchLayout(switchSelA, switchSelB, electrodeA, electrodeB), nil
	case "psoc4":
		return mux.PSoC4Layout(0, 1), nil
	default:
		return mux.Layout{}, fmt.Errorf("unknown layout %q (want switch or psoc4)", name)
	}
}

func parseEvents(names []string) ([]link.Event, error) {
	events := make([]link.Event, 0, len(names))
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "ready":
			events = append(events, link.EventStackReady)
		case "connect":
			events = append(events, link.EventConnectRequested)
		case "disconnect":
			events = append(events, link.EventDisconnected)
		case "ignored", "write":
			events = append(events, link.EventIgnored)
		default:
			return nil, fmt.Errorf("unknown event %q", name)
		}
	}
	return events, nil
}

func runSimulate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if simCycles < 0 {
		return errors.New("--cycles must not be negative")
	}
	layout, err := parseLayout(simLayout)
	if err != nil {
		return err
	}
	events, err := parseEvents(simEvents)
	if err != nil {
		return err
	}

	pulse := stimulus.Pulse{Amplitude: simAmplitude, Width: simWidth}
	cadence := trigger.Config{Period: simPeriod, Margin: simMargin}
	cycle := stimulus.CycleDuration(pulse, simSettle)
	if err := cadence.Validate(cycle); err != nil {
		return err
	}

	bench, err := sim.NewBench(layout)
	if err != nil {
		return fmt.Errorf("could not start the output stage: %w", err)
	}
	// Sequencer faults arrive on the ticker goroutine with --realtime, so
	// they are kept apart from the link faults.
	var seqFaults, linkFaults []error
	seq := stimulus.New(bench.Router, bench.DAC, bench.LED, stimulus.Config{
		Pulse:  pulse,
		Settle: simSettle,
		Wait:   bench.Wait,
		Fault: func(err error) {
			seqFaults = append(seqFaults, err)
		},
	})

	stack := &sim.Stack{}
	ctrl := link.NewController(stack)
	ctrl.OnFault = func(err error) {
		linkFaults = append(linkFaults, err)
	}
	loop := link.NewLoop(stack, ctrl)
	if err := loop.Start(); err != nil {
		return err
	}
	loop.Step()

	deliver := func(i int) {
		if i < len(events) {
			if verbose {
				fmt.Fprintf(out, "event %s in %s\n", events[i], ctrl.State())
			}
			stack.Deliver(events[i])
		}
		loop.Step()
	}

	if simRealtime {
		runRealtime(seq, cadence, deliver)
	} else {
		for i := 0; i < simCycles; i++ {
			deliver(i)
			seq.Fire()
			bench.Wait(cadence.Period - cycle)
		}
	}
	for i := simCycles; i < len(events); i++ {
		deliver(i)
	}

	report := bench.Analyze()
	if simTrace {
		fmt.Fprint(out, bench.Trace)
	}
	printReport(out, report, pulse, cadence, cycle, ctrl, stack)

	faults := append(seqFaults, linkFaults...)
	for _, err := range faults {
		fmt.Fprintf(out, "fault: %v\n", err)
	}
	if len(faults) > 0 || !report.OK() {
		return fmt.Errorf("simulation failed: %d fault(s), %d violation(s)", len(faults), len(report.Violations))
	}
	return nil
}

// runRealtime fires the cycles from a host ticker. The bench is only
// touched by the ticker goroutine while the main goroutine pumps events.
func runRealtime(seq *stimulus.Sequencer, cadence trigger.Config, deliver func(int)) {
	if simCycles == 0 {
		return
	}
	fired := make(chan struct{}, simCycles)
	tk := trigger.NewTicker(cadence, func() {
		if seq.Cycles() >= uint32(simCycles) {
			return
		}
		seq.Fire()
		fired <- struct{}{}
	})
	for i := 0; i < simCycles; i++ {
		deliver(i)
		<-fired
	}
	tk.Stop()
}

func printReport(w io.Writer, r *sim.Report, p stimulus.Pulse, cadence trigger.Config, cycle time.Duration, ctrl *link.Controller, stack *sim.Stack) {
	fmt.Fprintf(w, "Simulated %d cycle(s) on the %s layout\n", r.Cycles, simLayout)
	fmt.Fprintf(w, "Pulse: code %d for %v per phase, settle %v, period %v\n", p.Amplitude, p.Width, simSettle, cadence.Period)
	for i, ct := range r.CycleTimes {
		if ct != cycle {
			fmt.Fprintf(w, "Cycle %d took %v (expected %v)\n", i+1, ct, cycle)
		}
	}
	if len(r.CycleTimes) > 0 {
		fmt.Fprintf(w, "Cycle time: %v (expected %v)\n", r.CycleTimes[0], cycle)
	}
	if verbose {
		routes := make([]string, len(r.Routes))
		for i, s := range r.Routes {
			routes[i] = s.String()
		}
		fmt.Fprintf(w, "Routes: %s\n", strings.Join(routes, " "))
	}
	fmt.Fprintf(w, "Link: %s, %d advertising command(s)\n", ctrl.State(), ctrl.Commands())
	if verbose {
		fmt.Fprintf(w, "Loop: %d step(s), %d sleep(s)\n", stack.Pumps, stack.Sleeps)
	}
	if r.OK() {
		fmt.Fprintln(w, "Safety: OK")
		return
	}
	fmt.Fprintf(w, "Safety: %d violation(s)\n", len(r.Violations))
	for _, v := range r.Violations {
		fmt.Fprintf(w, "  %s\n", v)
	}
}
