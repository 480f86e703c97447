package tui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "j", "down":
			if m.selectedRow < len(m.runs)-1 {
				m.selectedRow++
				return m, m.refreshSelected()
			}
		case "k", "up":
			if m.selectedRow > 0 {
				m.selectedRow--
				return m, m.refreshSelected()
			}
		case "r":
			return m, m.refreshSelected()
		case "c":
			if run := m.SelectedRun(); run != nil && m.canceller != nil && !run.Status.Terminal() {
				if err := m.canceller.Cancel(run.ID); err != nil {
					m.statusLine = "cancel failed: " + err.Error()
				} else {
					m.statusLine = "cancellation requested for " + run.ID
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case TickMsg:
		return m, tea.Batch(m.refreshSelected(), tickCmd())

	case RefreshMsg:
		if msg.Err != nil {
			m.statusLine = "refresh failed: " + msg.Err.Error()
			return m, nil
		}
		m.runs = msg.Runs
		if m.selectedRow >= len(m.runs) {
			m.selectedRow = len(m.runs) - 1
		}
		if m.selectedRow < 0 {
			m.selectedRow = 0
		}
		if msg.Tasks != nil || msg.Logs != nil {
			m.tasks = msg.Tasks
			m.logs = msg.Logs
		}
	}

	return m, nil
}

func (m Model) refreshSelected() tea.Cmd {
	selected := ""
	if run := m.SelectedRun(); run != nil {
		selected = run.ID
	}
	return refreshCmd(m.provider, selected)
}
