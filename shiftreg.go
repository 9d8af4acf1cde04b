package main

import "fmt"

// Wiring maps logical bit i of a register byte to physical output Wiring[i].
type Wiring [8]uint8

var (
	IdentityWiring = Wiring{0, 1, 2, 3, 4, 5, 6, 7}

	// LeonardoWiring is the Leonardo prototype board, where column 0 sits on QA and
	// columns 1-7 run backwards from QH.
	LeonardoWiring = Wiring{0, 7, 6, 5, 4, 3, 2, 1}
)

func (w Wiring) resolved() Wiring {
	if w == (Wiring{}) {
		return IdentityWiring
	}
	return w
}

func (w Wiring) validate() error {
	var seen [8]bool
	for i, out := range w.resolved() {
		if out > 7 {
			return configErr("wiring", "bit %d mapped to output %d", i, out)
		}
		if seen[out] {
			return configErr("wiring", "output %d mapped twice", out)
		}
		seen[out] = true
	}
	return nil
}

// apply moves every set logical bit of b to its physical position.
func (w Wiring) apply(b byte) byte {
	w = w.resolved()
	var out byte
	for i := 0; i < 8; i++ {
		if b&(1<<i) != 0 {
			out |= 1 << w[i]
		}
	}
	return out
}

// columnMask returns the one-hot bytes for the two registers. Columns 0-7
// live on the right register, 8-15 on the left.
func columnMask(index int) (left, right byte) {
	if index < 8 {
		return 0, 1 << index
	}
	return 1 << (index - 8), 0
}

// ColumnSelector asserts exactly one column line.
type ColumnSelector interface {
	SelectColumn(index int)
}

// ShiftRegister drives the column lines through two daisy-chained 74HC595.
type ShiftRegister struct {
	io     PinIO
	data   Pin
	clock  Pin
	latch  Pin
	wiring Wiring
	cols   int
}

func NewShiftRegister(io PinIO, cfg Config) *ShiftRegister {
	for _, p := range []Pin{cfg.DataPin, cfg.ClockPin, cfg.LatchPin} {
		io.SetPinMode(p, PinOutput)
	}
	return &ShiftRegister{
		io:     io,
		data:   cfg.DataPin,
		clock:  cfg.ClockPin,
		latch:  cfg.LatchPin,
		wiring: cfg.Wiring.resolved(),
		cols:   cfg.Cols,
	}
}

// SelectColumn shifts out the left byte then the right byte with the latch
// held low, so the outputs switch in one step on the rising latch edge.
func (s *ShiftRegister) SelectColumn(index int) {
	if index < 0 || index >= s.cols {
		panic(fmt.Sprintf("shiftreg: column %d out of range 0..%d", index, s.cols-1))
	}
	left, right := columnMask(index)

	s.io.DigitalWrite(s.latch, false)
	s.shiftOut(s.wiring.apply(left))
	s.shiftOut(s.wiring.apply(right))
	s.io.DigitalWrite(s.latch, true)
}

// shiftOut clocks b out MSB first.
func (s *ShiftRegister) shiftOut(b byte) {
	for i := 7; i >= 0; i-- {
		s.io.DigitalWrite(s.data, b&(1<<i) != 0)
		s.io.DigitalWrite(s.clock, true)
		s.io.DigitalWrite(s.clock, false)
	}
}
