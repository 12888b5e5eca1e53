package mux

// Field describes the bits of one register that belong to the electrode
// pair and the value of those bits in each state.
type Field struct {
	Mask   uint32
	Values [numStates]uint32
}

func (f Field) apply(reg Register, s State) {
	if f.Mask == 0xffff_ffff {
		reg.Set(f.Values[s])
		return
	}
	reg.Set(reg.Get()&^f.Mask | f.Values[s]&f.Mask)
}

// Layout is the full register encoding of the three routing states.
type Layout struct {
	// Route selects which electrode is connected to the current source.
	Route Field

	// Config sets the drive mode (or direction) of the electrode pins.
	Config Field
}

// Values used by the PSoC 4 port select (HSIOM) and port configuration
// (PC) registers.
const (
	psocHSIOMAnalogB = 0x06 // connect pin to AMUXBUS B
	psocDriveStrong  = 0x06 // strong drive, pin follows DR (which is 0)
)

// PSoC4Layout returns the encoding for a PSoC 4 part where the IDAC is
// connected through the analog mux bus. shiftA and shiftB are the pin
// numbers of electrode A and B within their port.
func PSoC4Layout(shiftA, shiftB uint) Layout {
	hsiomA := uint32(psocHSIOMAnalogB) << (4 * shiftA)
	hsiomB := uint32(psocHSIOMAnalogB) << (4 * shiftB)
	pcA := uint32(psocDriveStrong) << (3 * shiftA)
	pcB := uint32(psocDriveStrong) << (3 * shiftB)
	return Layout{
		Route: Field{
			Mask: 0xf<<(4*shiftA) | 0xf<<(4*shiftB),
			Values: [numStates]uint32{
				Grounded: 0,
				Forward:  hsiomB,
				Reverse:  hsiomA,
			},
		},
		Config: Field{
			Mask: 0x7<<(3*shiftA) | 0x7<<(3*shiftB),
			Values: [numStates]uint32{
				Grounded: pcA | pcB,
				Forward:  pcA,
				Reverse:  pcB,
			},
		},
	}
}

// SwitchLayout returns the encoding for a part without an internal analog
// mux. selA and selB are the port bits driving the enable inputs of an
// external analog switch (one per electrode), pinA and pinB are the port
// bits of the electrodes themselves in the direction register. An
// electrode that is not carrying current is an output driven low.
func SwitchLayout(selA, selB, pinA, pinB uint) Layout {
	return Layout{
		Route: Field{
			Mask: 1<<selA | 1<<selB,
			Values: [numStates]uint32{
				Grounded: 0,
				Forward:  1 << selB,
				Reverse:  1 << selA,
			},
		},
		Config: Field{
			Mask: 1<<pinA | 1<<pinB,
			Values: [numStates]uint32{
				Grounded: 1<<pinA | 1<<pinB,
				Forward:  1 << pinA,
				Reverse:  1 << pinB,
			},
		},
	}
}
