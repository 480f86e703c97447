// Package tui is a terminal dashboard over the run store: runs on the
// left, the selected run's tasks and recent log lines on the right.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// Provider supplies the dashboard's data on each refresh tick
type Provider interface {
	ListRuns(status domain.RunStatus) ([]*domain.Run, error)
	ListTasks(runID string) ([]*domain.Task, error)
	ListLogs(runID string, limit int) ([]*domain.LogEntry, error)
}

// Canceller requests run cancellation from the dashboard
type Canceller interface {
	Cancel(runID string) error
}

// Model is the TUI application model
type Model struct {
	provider  Provider
	canceller Canceller

	runs  []*domain.Run
	tasks []*domain.Task
	logs  []*domain.LogEntry

	width       int
	height      int
	selectedRow int
	statusLine  string

	lastRefresh time.Time
}

// NewModel creates a new TUI model
func NewModel(provider Provider, canceller Canceller) Model {
	return Model{provider: provider, canceller: canceller}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(refreshCmd(m.provider, ""), tickCmd())
}

// TickMsg triggers a refresh
type TickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(2*time.Second, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}

// RefreshMsg carries freshly loaded data
type RefreshMsg struct {
	Runs  []*domain.Run
	Tasks []*domain.Task
	Logs  []*domain.LogEntry
	Err   error
}

func refreshCmd(provider Provider, selectedRun string) tea.Cmd {
	return func() tea.Msg {
		runs, err := provider.ListRuns("")
		if err != nil {
			return RefreshMsg{Err: err}
		}
		msg := RefreshMsg{Runs: runs}
		if selectedRun != "" {
			msg.Tasks, _ = provider.ListTasks(selectedRun)
			msg.Logs, _ = provider.ListLogs(selectedRun, 8)
		}
		return msg
	}
}

// SelectedRun returns the run under the cursor, or nil
func (m Model) SelectedRun() *domain.Run {
	if m.selectedRow < 0 || m.selectedRow >= len(m.runs) {
		return nil
	}
	return m.runs[m.selectedRow]
}
