package main

import "fmt"

var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

func pitchName(pitch int) string {
	if pitch < 0 || pitch > 127 {
		return fmt.Sprintf("?\"%d\"", pitch)
	}
	return fmt.Sprintf("%s%d", noteNames[pitch%12], (pitch/12)-1)
}

// cell is one switch in the matrix.
type cell struct {
	pitch   uint8
	pressed bool
}

// buildCells assigns pitches column-major: row varies fastest, so column c
// holds BasePitch+c*Rows .. BasePitch+c*Rows+Rows-1. The result is indexed
// row*Cols+col. cfg must already be valid.
func buildCells(cfg Config) []cell {
	cells := make([]cell, cfg.Rows*cfg.Cols)
	note := cfg.BasePitch
	for col := 0; col < cfg.Cols; col++ {
		for row := 0; row < cfg.Rows; row++ {
			cells[row*cfg.Cols+col] = cell{pitch: uint8(note)}
			note++
		}
	}
	logger.Debug("mapping: pitch map built",
		"rows", cfg.Rows,
		"cols", cfg.Cols,
		"lowest", pitchName(cfg.BasePitch),
		"highest", pitchName(note-1),
	)
	return cells
}
