// Package watchtui renders cmd/solver's --watch live training-progress
// display: a Bubble Tea Model fed solver.Progress snapshots through its
// event loop, grounded on the teacher's internal/tui Model/Update/View
// shape and lipgloss styling.
package watchtui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lox/holdem-solver/sdk/solver"
)

// ProgressMsg wraps a solver.Progress update for delivery into the Bubble
// Tea event loop via (*tea.Program).Send.
type ProgressMsg solver.Progress

// DoneMsg signals that training has finished, successfully or not, and the
// program should quit.
type DoneMsg struct{ Err error }

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575")).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAFAFA"))
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F")).Bold(true)
)

// Model renders live MCCFR training progress: an iteration/node counter
// panel plus a bar showing how far the run is toward its target iteration
// count, when one was configured (time-bounded runs leave target at 0 and
// the bar simply stays empty).
type Model struct {
	target int64
	last   solver.Progress
	err    error
	done   bool
	bar    progress.Model
}

// New builds a watch Model for a training run aiming at target iterations.
func New(target int64) Model {
	return Model{target: target, bar: progress.New(progress.WithDefaultGradient())}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd { return nil }

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		}
	case ProgressMsg:
		m.last = solver.Progress(msg)
	case DoneMsg:
		m.done = true
		m.err = msg.Err
		return m, tea.Quit
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.done {
		if m.err != nil {
			return errStyle.Render(fmt.Sprintf("training stopped: %v", m.err)) + "\n"
		}
		return titleStyle.Render("training complete") + "\n"
	}

	pct := 0.0
	if m.target > 0 {
		pct = float64(m.last.Iteration) / float64(m.target)
		if pct > 1 {
			pct = 1
		}
	}

	header := titleStyle.Render("holdem-solver — training progress")
	stats := labelStyle.Render(fmt.Sprintf(
		"iteration %d  nodes %d  terminals %d  max_depth %d  strategy_update=%v  pruning=%v",
		m.last.Iteration, m.last.Stats.NodesVisited, m.last.Stats.TerminalNodes,
		m.last.Stats.MaxDepth, m.last.StrategyUpdate, m.last.Pruning,
	))
	bar := m.bar.ViewAs(pct)
	return fmt.Sprintf("%s\n\n%s\n%s\n\nctrl+c to detach (training keeps running)\n", header, stats, bar)
}
