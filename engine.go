package main

import (
	"context"
	"time"
)

// RowReader samples every row line of the currently selected column.
type RowReader interface {
	ReadRows(levels []bool)
}

// Engine scans the matrix and turns level changes into note events. It is not
// safe for concurrent use; one goroutine owns it for the life of the process.
type Engine struct {
	rows, cols int
	velocity   uint8
	channel    uint8

	cells  []cell
	levels []bool

	driver ColumnSelector
	reader RowReader
	sinks  []Sink

	// Settle is slept after each column select, for backends whose reads lag
	// the write (Firmata reporting).
	Settle time.Duration
}

// NewEngine validates cfg and builds the pitch map. All cells start released.
func NewEngine(cfg Config, driver ColumnSelector, reader RowReader, sinks ...Sink) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		rows:     cfg.Rows,
		cols:     cfg.Cols,
		velocity: uint8(cfg.Velocity),
		channel:  uint8(cfg.Channel),
		cells:    buildCells(cfg),
		levels:   make([]bool, cfg.Rows),
		driver:   driver,
		reader:   reader,
		sinks:    sinks,
	}, nil
}

func (e *Engine) Rows() int { return e.rows }
func (e *Engine) Cols() int { return e.cols }

func (e *Engine) at(row, col int) (*cell, bool) {
	if row < 0 || row >= e.rows || col < 0 || col >= e.cols {
		return nil, false
	}
	return &e.cells[row*e.cols+col], true
}

// Pressed reports the recorded state of a cell.
func (e *Engine) Pressed(row, col int) (pressed, ok bool) {
	c, ok := e.at(row, col)
	if !ok {
		return false, false
	}
	return c.pressed, true
}

// Pitch returns the note assigned to a cell.
func (e *Engine) Pitch(row, col int) (pitch uint8, ok bool) {
	c, ok := e.at(row, col)
	if !ok {
		return 0, false
	}
	return c.pitch, true
}

// ScanCycle visits every column once, in order.
func (e *Engine) ScanCycle() {
	for col := 0; col < e.cols; col++ {
		e.scanColumn(col)
	}
}

func (e *Engine) scanColumn(col int) {
	e.driver.SelectColumn(col)
	if e.Settle > 0 {
		time.Sleep(e.Settle)
	}
	e.reader.ReadRows(e.levels)

	// presses first, then releases, each in row order
	for row := 0; row < e.rows; row++ {
		c := &e.cells[row*e.cols+col]
		if e.levels[row] && !c.pressed {
			c.pressed = true
			e.emit(NoteOn, c.pitch, row, col)
		}
	}
	for row := 0; row < e.rows; row++ {
		c := &e.cells[row*e.cols+col]
		if !e.levels[row] && c.pressed {
			c.pressed = false
			e.emit(NoteOff, c.pitch, row, col)
		}
	}
}

func (e *Engine) emit(kind EventKind, pitch uint8, row, col int) {
	ev := Event{Kind: kind, Pitch: pitch, Velocity: e.velocity, Channel: e.channel}
	logger.Debug("scan: key "+kind.String(), "row", row, "col", col, "pitch", pitchName(int(pitch)))
	for _, s := range e.sinks {
		s.Send(ev)
	}
}

// ReleaseAll sends Note Off for every held key and marks it released, so a
// receiver is not left with hanging notes when the loop stops.
func (e *Engine) ReleaseAll() int {
	released := 0
	for col := 0; col < e.cols; col++ {
		for row := 0; row < e.rows; row++ {
			c := &e.cells[row*e.cols+col]
			if c.pressed {
				c.pressed = false
				e.emit(NoteOff, c.pitch, row, col)
				released++
			}
		}
	}
	if released > 0 {
		logger.Info("scan: released held keys", "count", released)
	}
	return released
}

// Run scans until ctx is cancelled, then releases anything still held.
// Between cycles it calls each tick function, for housekeeping that must stay
// on the scan goroutine.
func (e *Engine) Run(ctx context.Context, ticks ...func()) error {
	var cycles uint64
	for {
		select {
		case <-ctx.Done():
			logger.Info("scan: stopping", "cycles", cycles)
			e.ReleaseAll()
			return ctx.Err()
		default:
		}
		e.ScanCycle()
		cycles++
		for _, t := range ticks {
			t()
		}
	}
}
