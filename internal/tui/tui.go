// Package tui provides a thin Bubble Tea render consumer of the Pane
// Manager's read model. It converts keyboard input into Pane Manager
// operations and periodically redraws the active pane's screen grid; it
// owns no pane state of its own.
//
// Follows go-hub's internal/tui/tui.go for the Elm-architecture
// Model/Update/View shape and lipgloss style set, generalized from a
// single-agent hub view to an active-pane screen-grid renderer.
package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/akiojin/gwtermd/internal/pane"
	"github.com/akiojin/gwtermd/internal/panemanager"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	terminalBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62"))
)

const redrawInterval = 100 * time.Millisecond

// Model holds the TUI state. It carries no pane data directly; every
// render reads a fresh Snapshot from the manager.
type Model struct {
	manager  *panemanager.Manager
	width    int
	height   int
	quitting bool
}

// New creates a new TUI model bound to manager.
func New(manager *panemanager.Manager) Model {
	return Model{manager: manager}
}

type redrawMsg struct{}

func redrawTick() tea.Cmd {
	return tea.Tick(redrawInterval, func(time.Time) tea.Msg { return redrawMsg{} })
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return redrawTick()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case redrawMsg:
		return m, redrawTick()

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.manager.ResizeAll(msg.Height, msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "left", "h":
			m.activatePrevious()
			return m, nil

		case "right", "l":
			m.activateNext()
			return m, nil

		default:
			if p := m.manager.ActivePane(); p != nil {
				_ = p.WriteInput([]byte(msg.String()))
			}
			return m, nil
		}
	}

	return m, nil
}

func (m Model) activatePrevious() {
	n := len(m.manager.Panes())
	if n == 0 {
		return
	}
	idx := m.manager.ActiveIndex() - 1
	if idx < 0 {
		idx = n - 1
	}
	_ = m.manager.Activate(idx)
}

func (m Model) activateNext() {
	n := len(m.manager.Panes())
	if n == 0 {
		return
	}
	idx := (m.manager.ActiveIndex() + 1) % n
	_ = m.manager.Activate(idx)
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder

	snap := m.manager.Snapshot()

	title := titleStyle.Render("gwtermd")
	status := statusStyle.Render(fmt.Sprintf(" | panes: %d", len(snap.Panes)))
	b.WriteString(title + status + "\n\n")

	if snap.IsEmpty {
		b.WriteString("No panes running.\n")
	} else {
		active := snap.Panes[snap.ActiveIndex]
		header := fmt.Sprintf("[%s] %s (%s)", statusLabel(active), active.BranchName, active.AgentName)
		b.WriteString(selectedStyle.Render(header) + "\n")
		b.WriteString(terminalBorderStyle.Render(m.renderActiveScreen()))
	}

	b.WriteString("\n")
	b.WriteString(statusStyle.Render("q: quit | ←/→ or h/l: switch pane | any other key: send input"))

	return b.String()
}

func (m Model) renderActiveScreen() string {
	p := m.manager.ActivePane()
	if p == nil {
		return ""
	}
	rows, cols := p.Emulator().Size()
	var b strings.Builder
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			cell := p.Emulator().Cell(row, col)
			if cell.Grapheme == "" {
				b.WriteString(" ")
			} else {
				b.WriteString(cell.Grapheme)
			}
		}
		if row < rows-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

func statusLabel(s panemanager.Snapshot) string {
	switch s.Status.Kind {
	case pane.Running:
		return "running"
	case pane.Completed:
		return "completed"
	default:
		return "error"
	}
}

// Run starts the TUI.
func Run(manager *panemanager.Manager) error {
	p := tea.NewProgram(New(manager), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
