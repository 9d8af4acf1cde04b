package main

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#555"))
	heldStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#fff")).Bold(true)
	cursorStyle = lipgloss.NewStyle().Background(lipgloss.Color("#444"))
	onStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#7c7"))
	offStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#c77"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const simEventLines = 16

type scanTickMsg time.Time

// simModel runs the scanner inside bubbletea's update loop, so every
// ScanCycle happens on one goroutine.
type simModel struct {
	engine   *Engine
	matrix   *VirtualMatrix
	recorder *RecordingSink
	tick     time.Duration
	ticks    []func()

	row, col int
	cycles   uint64
	quitting bool
}

func newSimModel(engine *Engine, matrix *VirtualMatrix, recorder *RecordingSink, tick time.Duration, ticks ...func()) simModel {
	return simModel{
		engine:   engine,
		matrix:   matrix,
		recorder: recorder,
		tick:     tick,
		ticks:    ticks,
	}
}

func scanTick(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg { return scanTickMsg(t) })
}

func (m simModel) Init() tea.Cmd {
	return scanTick(m.tick)
}

func (m simModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			m.engine.ReleaseAll()
			return m, tea.Quit
		case "h", "left":
			if m.col > 0 {
				m.col--
			}
		case "l", "right":
			if m.col < m.engine.Cols()-1 {
				m.col++
			}
		case "k", "up":
			if m.row > 0 {
				m.row--
			}
		case "j", "down":
			if m.row < m.engine.Rows()-1 {
				m.row++
			}
		case " ", "enter":
			m.matrix.Toggle(m.row, m.col)
		case "r":
			m.matrix.ReleaseKeys()
		case "c":
			m.recorder.Reset()
		}

	case scanTickMsg:
		m.engine.ScanCycle()
		m.cycles++
		for _, t := range m.ticks {
			t()
		}
		return m, scanTick(m.tick)
	}
	return m, nil
}

func (m simModel) View() string {
	if m.quitting {
		return ""
	}

	var grid strings.Builder
	for row := 0; row < m.engine.Rows(); row++ {
		var cells []string
		for col := 0; col < m.engine.Cols(); col++ {
			pitch, _ := m.engine.Pitch(row, col)
			pressed, _ := m.engine.Pressed(row, col)
			style := dimStyle
			if pressed {
				style = heldStyle
			}
			if row == m.row && col == m.col {
				style = style.Inherit(cursorStyle)
			}
			cells = append(cells, style.Render(fmt.Sprintf("%-4s", pitchName(int(pitch)))))
		}
		grid.WriteString(strings.Join(cells, " "))
		grid.WriteString("\n")
	}

	var events strings.Builder
	recent := m.recorder.Events()
	if len(recent) > simEventLines {
		recent = recent[len(recent)-simEventLines:]
	}
	for _, ev := range recent {
		style := onStyle
		if ev.Kind == NoteOff {
			style = offStyle
		}
		events.WriteString(style.Render(ev.String()))
		events.WriteString("\n")
	}
	if len(recent) == 0 {
		events.WriteString(dimStyle.Render("no events yet"))
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		panelStyle.Render(strings.TrimRight(grid.String(), "\n")),
		panelStyle.Width(28).Render(strings.TrimRight(events.String(), "\n")),
	)
	pitch, _ := m.engine.Pitch(m.row, m.col)
	status := statusStyle.Render(fmt.Sprintf("r%d c%d %s  cycles=%d", m.row, m.col, pitchName(int(pitch)), m.cycles))
	help := dimStyle.Render("hjkl/arrows:move  space:toggle key  r:release all  c:clear log  q:quit")

	return fmt.Sprintf("\n%s\n%s\n%s\n", body, status, help)
}
