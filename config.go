package main

import "fmt"

// -------------------- Build-time layout --------------------

const (
	MaxRows    = 8
	MaxColumns = 16 // two daisy-chained 74HC595

	NoteVelocity = 127
	MIDIChannel  = 0
	SerialRate   = 31250 // MIDI baud rate
	FirmataBaud  = 57600
)

// Config is the fixed hardware layout of the keyboard. It is chosen at build
// time; nothing in it changes while the scan loop runs.
type Config struct {
	Rows      int
	Cols      int
	BasePitch int
	Velocity  int
	Channel   int

	RowPins  []Pin
	DataPin  Pin
	LatchPin Pin
	ClockPin Pin

	// Wiring maps a logical bit in a register byte to the physical output it
	// is soldered to. The zero value is the identity.
	Wiring Wiring
}

// DefaultConfig is the 8x8 board: rows on pins 0-7, shift chain on 8/9/10,
// lowest key is C1 (24).
func DefaultConfig() Config {
	return Config{
		Rows:      8,
		Cols:      8,
		BasePitch: 31 - 7,
		Velocity:  NoteVelocity,
		Channel:   MIDIChannel,
		RowPins:   []Pin{0, 1, 2, 3, 4, 5, 6, 7},
		DataPin:   8,
		LatchPin:  9,
		ClockPin:  10,
		Wiring:    IdentityWiring,
	}
}

// ConfigurationError reports a layout that cannot be scanned. It is only ever
// produced at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func configErr(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks every precondition the scan loop relies on.
func (c Config) Validate() error {
	if c.Rows < 1 || c.Rows > MaxRows {
		return configErr("rows", "%d not in 1..%d", c.Rows, MaxRows)
	}
	if len(c.RowPins) != c.Rows {
		return configErr("row_pins", "have %d pins for %d rows", len(c.RowPins), c.Rows)
	}
	if c.Cols < 1 || c.Cols > MaxColumns {
		return configErr("cols", "%d not in 1..%d", c.Cols, MaxColumns)
	}
	if c.BasePitch < 0 {
		return configErr("base_pitch", "%d is negative", c.BasePitch)
	}
	if top := c.BasePitch + c.Rows*c.Cols - 1; top > 127 {
		return configErr("base_pitch", "highest key would be %d, above 127", top)
	}
	if c.Velocity < 0 || c.Velocity > 127 {
		return configErr("velocity", "%d not in 0..127", c.Velocity)
	}
	if c.Channel < 0 || c.Channel > 15 {
		return configErr("channel", "%d not in 0..15", c.Channel)
	}
	if err := c.Wiring.validate(); err != nil {
		return err
	}

	seen := map[Pin]string{}
	claim := func(p Pin, role string) error {
		if prev, ok := seen[p]; ok {
			return configErr("pins", "pin %d used for both %s and %s", p, prev, role)
		}
		seen[p] = role
		return nil
	}
	for i, p := range c.RowPins {
		if err := claim(p, fmt.Sprintf("row %d", i)); err != nil {
			return err
		}
	}
	for _, s := range []struct {
		p    Pin
		role string
	}{{c.DataPin, "data"}, {c.LatchPin, "latch"}, {c.ClockPin, "clock"}} {
		if err := claim(s.p, s.role); err != nil {
			return err
		}
	}
	return nil
}
