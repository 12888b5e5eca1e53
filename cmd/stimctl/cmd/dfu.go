package cmd

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"tinygo.org/x/bluetooth"

	"github.com/tinygo-org/stimulator/dfuservice"
)

var dfuAddress string

var dfuCmd = &cobra.Command{
	Use:   "dfu <firmware.elf>",
	Short: "Upload new firmware over BLE",
	Long: `Reset a stimulator into the bootloader and write a new firmware image.

The stimulator grounds its electrodes and stops stimulating before it
resets. The image is extracted from the ELF file the same way objcopy
produces a raw binary.

Examples:
  stimctl dfu stimulator.elf
  stimctl dfu --address C4:7E:21:09:5A:10 stimulator.elf`,
	Args: cobra.ExactArgs(1),
	RunE: runDFU,
}

func init() {
	rootCmd.AddCommand(dfuCmd)
	dfuCmd.Flags().StringVarP(&dfuAddress, "address", "a", "", "address of the stimulator (default: first one found)")
}

// dfuLink is the pair of characteristics of a connected DFU service.
type dfuLink struct {
	command bluetooth.DeviceCharacteristic
	data    bluetooth.DeviceCharacteristic
	status  chan uint8
}

func runDFU(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	img, err := readImage(args[0])
	if err != nil {
		return fmt.Errorf("could not read input file: %w", err)
	}
	if err := img.check(); err != nil {
		return fmt.Errorf("could not use input file: %w", err)
	}

	if err := adapter.Enable(); err != nil {
		return fmt.Errorf("could not enable BLE adapter: %w", err)
	}

	fmt.Fprintln(out, "Looking for stimulator...")
	target, err := findTarget(func(r bluetooth.ScanResult) bool {
		if dfuAddress != "" {
			return r.Address.String() == dfuAddress
		}
		// A device already in the bootloader only advertises the service.
		if r.HasServiceUUID(dfuservice.ServiceUUID) {
			return true
		}
		_, ok := stimulatorFrom(r)
		return ok
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Connecting to %s...\n", target.Address)
	dl, err := connectDFU(target.Address)
	if err != nil {
		return err
	}

	// Ignored by the bootloader; makes the application reset into it.
	_, err = dl.command.WriteWithoutResponse([]byte{dfuservice.CommandResetBootloader})
	if err != nil {
		return fmt.Errorf("failed to send reset bootloader command: %w", err)
	}

	erase := eraseCommand(img.start, len(img.data))
	_, err = dl.command.WriteWithoutResponse(erase)
	if err != nil && err.Error() == "Not connected" {
		// The device reset itself and now runs the bootloader under the
		// same address.
		fmt.Fprintln(out, "Lost connection, the device is resetting into DFU mode. Finding it again...")
		target, err = findTarget(func(r bluetooth.ScanResult) bool {
			return r.Address == target.Address
		})
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Reconnecting...")
		dl, err = connectDFU(target.Address)
		if err != nil {
			return err
		}
		_, err = dl.command.WriteWithoutResponse(erase)
	}
	if err != nil {
		return fmt.Errorf("failed to send erase command: %w", err)
	}
	fmt.Fprintf(out, "Erasing flash (start 0x%x, length %d bytes or %.1fkB)...\n", img.start, len(img.data), float64(len(img.data))/1024)

	status := <-dl.status
	if status == dfuservice.StatusEraseStarted {
		status = <-dl.status
	}
	if err := eraseError(status, img.start, len(img.data)); err != nil {
		return fmt.Errorf("could not erase flash: %w", err)
	}

	start := time.Now()
	if err := writeImage(out, img, dl.data.WriteWithoutResponse); err != nil {
		return err
	}
	status = <-dl.status
	elapsed := time.Since(start)
	fmt.Fprint(out, "\033[2K\r")
	if err := writeError(status); err != nil {
		return fmt.Errorf("failed to write new application: %w", err)
	}

	fmt.Fprintf(out, "Write completed in %s (%.1f kB/s).\n", elapsed.Round(time.Millisecond), float64(len(img.data))/1000/elapsed.Seconds())
	fmt.Fprintln(out, "Resetting device...")
	// The device resets before it can acknowledge, so a lost connection
	// here is expected.
	if _, err := dl.command.WriteWithoutResponse([]byte{dfuservice.CommandReset}); err != nil && verbose {
		fmt.Fprintf(out, "reset: %v\n", err)
	}
	return nil
}

// findTarget scans until match accepts a result.
func findTarget(match func(bluetooth.ScanResult) bool) (bluetooth.ScanResult, error) {
	var target bluetooth.ScanResult
	var stopErr error
	err := adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
		if !match(result) {
			return
		}
		target = result
		stopErr = adapter.StopScan()
	})
	if err != nil {
		return target, fmt.Errorf("could not start a scan: %w", err)
	}
	if stopErr != nil {
		return target, fmt.Errorf("could not stop the scan: %w", stopErr)
	}
	return target, nil
}

func connectDFU(addr bluetooth.Address) (*dfuLink, error) {
	device, err := adapter.Connect(addr, bluetooth.ConnectionParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	services, err := device.DiscoverServices([]bluetooth.UUID{dfuservice.ServiceUUID})
	if err != nil {
		return nil, fmt.Errorf("failed to discover the DFU service: %w", err)
	}
	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{dfuservice.CommandUUID, dfuservice.DataUUID})
	if err != nil {
		return nil, fmt.Errorf("failed to discover characteristics: %w", err)
	}
	dl := &dfuLink{
		command: chars[0],
		data:    chars[1],
		status:  make(chan uint8, 4),
	}
	err = dl.command.EnableNotifications(func(buf []byte) {
		if len(buf) > 0 {
			dl.status <- buf[0]
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to status: %w", err)
	}
	return dl, nil
}

// writeImage streams the image in ChunkSize writes and stops at the first
// failed one.
func writeImage(out io.Writer, img *firmwareImage, write func([]byte) (int, error)) error {
	addr := img.start
	for _, chunk := range img.chunks(dfuservice.ChunkSize) {
		fmt.Fprintf(out, "\rWriting 0x%x (%d%%)...", addr, (addr-img.start)*100/uint64(len(img.data)))
		if _, err := write(chunk); err != nil {
			fmt.Fprint(out, "\n")
			return fmt.Errorf("failed to write at 0x%x: %w", addr, err)
		}
		addr += uint64(len(chunk))
	}
	return nil
}

// eraseCommand is CommandStart, three bytes of padding, then start address
// and length as little endian uint32.
func eraseCommand(startAddr uint64, length int) []byte {
	buf := &bytes.Buffer{}
	buf.Write([]byte{dfuservice.CommandStart, 0, 0, 0})
	binary.Write(buf, binary.LittleEndian, uint32(startAddr))
	binary.Write(buf, binary.LittleEndian, uint32(length))
	return buf.Bytes()
}

func eraseError(status uint8, startAddr uint64, length int) error {
	switch status {
	case dfuservice.StatusEraseFinished:
		return nil
	case dfuservice.StatusInvalidEraseStart:
		return fmt.Errorf("invalid start address: 0x%x", startAddr)
	case dfuservice.StatusInvalidEraseLength:
		return fmt.Errorf("invalid length: 0x%x", length)
	case dfuservice.StatusBusy:
		return errors.New("an operation is already in progress")
	case dfuservice.StatusEraseFailed:
		return errors.New("failed to erase flash")
	default:
		return fmt.Errorf("unknown error (0x%x)", status)
	}
}

func writeError(status uint8) error {
	switch status {
	case dfuservice.StatusWriteFinished:
		return nil
	case dfuservice.StatusWriteFailed:
		return errors.New("write failed")
	case dfuservice.StatusWriteTooFast:
		return errors.New("write was too fast")
	default:
		return fmt.Errorf("unknown (code 0x%x)", status)
	}
}
