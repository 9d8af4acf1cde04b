package main

import "testing"

func TestPitchMapColumnMajor(t *testing.T) {
	for _, cols := range []int{8, 11} {
		cfg := DefaultConfig()
		cfg.Cols = cols
		r := newRig(t, cfg)

		seen := map[uint8]bool{}
		for col := 0; col < cfg.Cols; col++ {
			for row := 0; row < cfg.Rows; row++ {
				p, ok := r.engine.Pitch(row, col)
				if !ok {
					t.Fatalf("Pitch(%d,%d) not ok", row, col)
				}
				if want := cfg.BasePitch + col*cfg.Rows + row; int(p) != want {
					t.Fatalf("%dx%d: Pitch(%d,%d) = %d, want %d", cfg.Rows, cols, row, col, p, want)
				}
				if seen[p] {
					t.Fatalf("pitch %d assigned twice", p)
				}
				seen[p] = true
			}
		}
		if len(seen) != cfg.Rows*cfg.Cols {
			t.Fatalf("%d distinct pitches, want %d", len(seen), cfg.Rows*cfg.Cols)
		}
	}
}

func TestCellsStartReleased(t *testing.T) {
	for i, c := range buildCells(DefaultConfig()) {
		if c.pressed {
			t.Fatalf("cell %d starts pressed", i)
		}
	}
}

func TestPitchName(t *testing.T) {
	tests := map[int]string{
		0:   "C-1",
		24:  "C1",
		60:  "C4",
		61:  "C#4",
		87:  "D#6",
		127: "G9",
		-1:  `?"-1"`,
		128: `?"128"`,
	}
	for pitch, want := range tests {
		if got := pitchName(pitch); got != want {
			t.Errorf("pitchName(%d) = %q, want %q", pitch, got, want)
		}
	}
}
