package main

// VirtualMatrix models the shift-register chain and the key switches in
// memory. It implements PinIO so the real driver and scanner run against it.
type VirtualMatrix struct {
	cfg    Config
	wiring Wiring
	rowOf  map[Pin]int

	levels  map[Pin]bool
	chain   uint16 // shift stage, left register in the high byte
	latched uint16 // output stage
	held    []bool // row*Cols+col

	// Shifts and Latches count clock and latch rising edges.
	Shifts  int
	Latches int
}

func NewVirtualMatrix(cfg Config) *VirtualMatrix {
	v := &VirtualMatrix{
		cfg:    cfg,
		wiring: cfg.Wiring.resolved(),
		rowOf:  make(map[Pin]int, len(cfg.RowPins)),
		levels: make(map[Pin]bool),
		held:   make([]bool, cfg.Rows*cfg.Cols),
	}
	for i, p := range cfg.RowPins {
		v.rowOf[p] = i
	}
	return v
}

func (v *VirtualMatrix) SetPinMode(Pin, PinMode) {}

func (v *VirtualMatrix) DigitalWrite(p Pin, high bool) {
	rising := high && !v.levels[p]
	v.levels[p] = high
	if !rising {
		return
	}
	switch p {
	case v.cfg.ClockPin:
		v.chain <<= 1
		if v.levels[v.cfg.DataPin] {
			v.chain |= 1
		}
		v.Shifts++
	case v.cfg.LatchPin:
		v.latched = v.chain
		v.Latches++
	}
}

// DigitalRead returns a row level: high when any driven column has that
// row's key held.
func (v *VirtualMatrix) DigitalRead(p Pin) bool {
	row, ok := v.rowOf[p]
	if !ok {
		return v.levels[p]
	}
	for col := 0; col < v.cfg.Cols; col++ {
		if v.held[row*v.cfg.Cols+col] && v.driven(col) {
			return true
		}
	}
	return false
}

// Latched returns the output stage as (left, right) register bytes.
func (v *VirtualMatrix) Latched() (left, right byte) {
	return byte(v.latched >> 8), byte(v.latched)
}

// ActiveColumns lists the logical columns currently driven high.
func (v *VirtualMatrix) ActiveColumns() []int {
	var cols []int
	for col := 0; col < MaxColumns; col++ {
		if v.driven(col) {
			cols = append(cols, col)
		}
	}
	return cols
}

func (v *VirtualMatrix) driven(col int) bool {
	left, right := v.Latched()
	reg, bit := right, col
	if col >= 8 {
		reg, bit = left, col-8
	}
	return reg&(1<<v.wiring[bit]) != 0
}

func (v *VirtualMatrix) index(row, col int) (int, bool) {
	if row < 0 || row >= v.cfg.Rows || col < 0 || col >= v.cfg.Cols {
		return 0, false
	}
	return row*v.cfg.Cols + col, true
}

func (v *VirtualMatrix) Press(row, col int) {
	if i, ok := v.index(row, col); ok {
		v.held[i] = true
	}
}

func (v *VirtualMatrix) Release(row, col int) {
	if i, ok := v.index(row, col); ok {
		v.held[i] = false
	}
}

func (v *VirtualMatrix) Toggle(row, col int) {
	if i, ok := v.index(row, col); ok {
		v.held[i] = !v.held[i]
	}
}

func (v *VirtualMatrix) Held(row, col int) bool {
	i, ok := v.index(row, col)
	return ok && v.held[i]
}

// ReleaseKeys lets go of every key.
func (v *VirtualMatrix) ReleaseKeys() {
	for i := range v.held {
		v.held[i] = false
	}
}
