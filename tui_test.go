package main

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func runeKey(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m simModel, msg tea.Msg) (simModel, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	sm, ok := next.(simModel)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return sm, cmd
}

func TestSimToggleAndScan(t *testing.T) {
	r := newRig(t, DefaultConfig())
	ticked := 0
	m := newSimModel(r.engine, r.matrix, r.recorder, time.Millisecond, func() { ticked++ })

	m, _ = update(t, m, runeKey("l"))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeySpace})
	if !r.matrix.Held(1, 1) {
		t.Fatal("space did not press the key under the cursor")
	}

	m, cmd := update(t, m, scanTickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("scan tick not rescheduled")
	}
	if ticked != 1 || m.cycles != 1 {
		t.Fatalf("ticked=%d cycles=%d", ticked, m.cycles)
	}
	expectEvents(t, r.recorder.Events(), on(24+8+1))

	view := m.View()
	if !strings.Contains(view, "A1") || !strings.Contains(view, "NOTE_ON") {
		t.Fatalf("view missing cell or event:\n%s", view)
	}
}

func TestSimCursorStaysOnGrid(t *testing.T) {
	r := newRig(t, DefaultConfig())
	m := newSimModel(r.engine, r.matrix, r.recorder, time.Millisecond)

	m, _ = update(t, m, runeKey("h"))
	m, _ = update(t, m, runeKey("k"))
	if m.row != 0 || m.col != 0 {
		t.Fatalf("cursor moved off grid to %d,%d", m.row, m.col)
	}
	for i := 0; i < 20; i++ {
		m, _ = update(t, m, runeKey("l"))
		m, _ = update(t, m, runeKey("j"))
	}
	if m.row != 7 || m.col != 7 {
		t.Fatalf("cursor at %d,%d, want 7,7", m.row, m.col)
	}
}

func TestSimQuitReleasesHeldNotes(t *testing.T) {
	r := newRig(t, DefaultConfig())
	m := newSimModel(r.engine, r.matrix, r.recorder, time.Millisecond)

	r.matrix.Press(0, 0)
	m, _ = update(t, m, scanTickMsg(time.Now()))
	m, cmd := update(t, m, runeKey("q"))
	if cmd == nil {
		t.Fatal("q did not quit")
	}
	if m.View() != "" {
		t.Fatal("view not cleared on quit")
	}
	expectEvents(t, r.recorder.Events(), on(24), off(24))
}

func TestSimReleaseAllKeys(t *testing.T) {
	r := newRig(t, DefaultConfig())
	m := newSimModel(r.engine, r.matrix, r.recorder, time.Millisecond)

	r.matrix.Press(0, 0)
	r.matrix.Press(3, 4)
	m, _ = update(t, m, scanTickMsg(time.Now()))
	m, _ = update(t, m, runeKey("r"))
	_, _ = update(t, m, scanTickMsg(time.Now()))

	expectEvents(t, r.recorder.Events(), on(24), on(24+4*8+3), off(24), off(24+4*8+3))
}
