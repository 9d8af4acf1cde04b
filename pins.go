package main

// Pin is a board pin number as printed on the controller.
type Pin uint8

type PinMode byte

const (
	PinInput  PinMode = 0x00
	PinOutput PinMode = 0x01
)

func (m PinMode) String() string {
	switch m {
	case PinInput:
		return "INPUT"
	case PinOutput:
		return "OUTPUT"
	}
	return "UNKNOWN"
}

// PinIO is the digital I/O surface the scanner needs. Writes are
// fire-and-forget; a backend that can fail logs and carries on.
type PinIO interface {
	SetPinMode(p Pin, mode PinMode)
	DigitalWrite(p Pin, high bool)
	DigitalRead(p Pin) bool
}

// RowBank samples the row input lines.
type RowBank struct {
	io   PinIO
	pins []Pin
}

func NewRowBank(io PinIO, pins []Pin) *RowBank {
	for _, p := range pins {
		io.SetPinMode(p, PinInput)
	}
	return &RowBank{io: io, pins: pins}
}

// ReadRows fills levels with one read per row.
func (r *RowBank) ReadRows(levels []bool) {
	for i, p := range r.pins {
		levels[i] = r.io.DigitalRead(p)
	}
}
