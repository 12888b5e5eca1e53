package cmd

import (
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
)

// flashPageSize is the erase unit of the nRF52 flash. The bootloader only
// erases whole pages starting at the application base.
const flashPageSize = 4096

// firmwareImage is the raw application image and the flash address it is
// linked to.
type firmwareImage struct {
	start uint64
	data  []byte
}

func (img *firmwareImage) end() uint64 {
	return img.start + uint64(len(img.data))
}

// check rejects images the bootloader would refuse after it has already
// been put into DFU mode.
func (img *firmwareImage) check() error {
	switch {
	case len(img.data) == 0:
		return errors.New("image is empty")
	case img.end() > 0xffffffff:
		return fmt.Errorf("file data does not fit (range: 0x%08x..0x%08x)", img.start, img.end())
	case img.start%flashPageSize != 0:
		return fmt.Errorf("start address 0x%x is not on a flash page boundary", img.start)
	}
	return nil
}

// chunks splits the image into writes of at most size bytes.
func (img *firmwareImage) chunks(size int) [][]byte {
	var out [][]byte
	for i := 0; i < len(img.data); i += size {
		end := i + size
		if end > len(img.data) {
			end = len(img.data)
		}
		out = append(out, img.data[i:end])
	}
	return out
}

// extractELF builds the image the way objcopy -O binary would: the
// loadable segments concatenated in address order, starting at the lowest
// allocated section.
func extractELF(r io.ReaderAt) (*firmwareImage, error) {
	f, err := elf.NewFile(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file to extract text segment: %w", err)
	}
	defer f.Close()

	startAddr := ^uint64(0)
	for _, section := range f.Sections {
		if section.Type != elf.SHT_PROGBITS || section.Flags&elf.SHF_ALLOC == 0 {
			continue
		}
		if section.Addr < startAddr {
			startAddr = section.Addr
		}
	}

	// Segments without file contents (.bss) take no room in flash.
	var segments []*elf.Prog
	for _, prog := range f.Progs {
		if prog.Type == elf.PT_LOAD && prog.Filesz != 0 {
			segments = append(segments, prog)
		}
	}
	if len(segments) == 0 {
		return nil, errors.New("file does not contain ROM segments")
	}
	sort.Slice(segments, func(i, j int) bool { return segments[i].Paddr < segments[j].Paddr })

	img := &firmwareImage{start: segments[0].Paddr}
	for _, prog := range segments {
		// The initial values of .data follow .text directly in flash; a gap
		// would have to be padded, and the linker script never leaves one.
		if prog.Paddr != img.end() {
			return nil, fmt.Errorf("ROM segments are non-contiguous (gap at 0x%x)", img.end())
		}
		data, err := io.ReadAll(prog.Open())
		if err != nil {
			return nil, fmt.Errorf("failed to extract segment at 0x%x: %w", prog.Paddr, err)
		}
		img.data = append(img.data, data...)
	}

	// A segment may start below the first section, for example when the
	// vector table area of the SoftDevice is part of the same load segment.
	// That part is not ours to write.
	if img.start < startAddr && startAddr < img.end() {
		img.data = img.data[startAddr-img.start:]
		img.start = startAddr
	}
	return img, nil
}

func readImage(filename string) (*firmwareImage, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	magic := make([]byte, 4)
	if _, err := f.ReadAt(magic, 0); err != nil {
		return nil, err
	}
	if string(magic) != "\x7fELF" {
		return nil, fmt.Errorf("could not determine file type (magic: %02x %02x %02x %02x)", magic[0], magic[1], magic[2], magic[3])
	}
	return extractELF(f)
}
