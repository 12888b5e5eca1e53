// Package dfuservice implements the DFU service of the TinyGo bootloader
// for the stimulator firmware, and holds the protocol constants shared with
// the host side uploader.
//
// The firmware only implements the stub part: a reset into the bootloader.
// Everything after that (erase, write) is answered by the bootloader itself.
package dfuservice

import "tinygo.org/x/bluetooth"

// ServiceUUID is the DFU service UUID. The bootloader advertises it; the
// stimulator firmware leaves it out of its advertisement to make room for
// the beacon, so uploaders look for either.
var ServiceUUID = bluetooth.NewUUID([16]byte{0xcb, 0x15, 0x00, 0x01, 0x24, 0x04, 0x4e, 0x66, 0xab, 0x07, 0xa5, 0xf1, 0x05, 0x3f, 0x14, 0xce})

var (
	CommandUUID = bluetooth.NewUUID([16]byte{0xcb, 0x15, 0x00, 0x02, 0x24, 0x04, 0x4e, 0x66, 0xab, 0x07, 0xa5, 0xf1, 0x05, 0x3f, 0x14, 0xce})
	DataUUID    = bluetooth.NewUUID([16]byte{0xcb, 0x15, 0x00, 0x03, 0x24, 0x04, 0x4e, 0x66, 0xab, 0x07, 0xa5, 0xf1, 0x05, 0x3f, 0x14, 0xce})
)

// Commands, from the uploader to the device.
const (
	CommandResetBootloader = 0x00
	CommandReset           = 0x01
	CommandStart           = 0x02 // erases the flash area given in the command
)

// Statuses notified on the command characteristic.
const (
	StatusPong               = 0x01
	StatusEraseStarted       = 0x02
	StatusEraseFinished      = 0x03 // uploader may start to stream data
	StatusWriteFinished      = 0x04
	StatusBusy               = 0x10
	StatusInvalidEraseStart  = 0x20 // start address is not APP_CODE_BASE
	StatusInvalidEraseLength = 0x21 // would overwrite the bootloader
	StatusEraseFailed        = 0x30
	StatusWriteFailed        = 0x31
	StatusWriteTooFast       = 0x32
)

// ChunkSize is the payload size of one write on the data characteristic.
const ChunkSize = 20

// isResetBootloader reports whether a command write asks for a reset into
// the bootloader.
func isResetBootloader(offset int, value []byte) bool {
	return offset == 0 && len(value) == 1 && value[0] == CommandResetBootloader
}
