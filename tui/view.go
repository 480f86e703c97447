package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

var (
	titleStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255")).
		Background(lipgloss.Color("236"))

	activeStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	doneStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	failedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	dimmedStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240"))

	statusBarStyle = lipgloss.NewStyle().
		Background(lipgloss.Color("236")).
		Foreground(lipgloss.Color("255"))
)

// View renders the TUI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Issue Orchestrator"))
	b.WriteString("\n\n")

	b.WriteString(sectionStyle.Render(m.renderRuns()))
	b.WriteString("\n")

	if run := m.SelectedRun(); run != nil {
		b.WriteString(sectionStyle.Render(m.renderTasks(run)))
		b.WriteString("\n")
		if len(m.logs) > 0 {
			b.WriteString(sectionStyle.Render(m.renderLogs()))
			b.WriteString("\n")
		}
	}

	help := "j/k move · c cancel · r refresh · q quit"
	if m.statusLine != "" {
		help = m.statusLine + "  ·  " + help
	}
	b.WriteString(statusBarStyle.Render(" " + help + " "))

	return b.String()
}

func (m Model) renderRuns() string {
	if len(m.runs) == 0 {
		return dimmedStyle.Render("no runs yet")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Runs (%d)\n", len(m.runs)))
	for i, run := range m.runs {
		line := fmt.Sprintf("%-38s %-20s issue %s", run.ID, run.Status, run.IssueID)
		if run.ReviewURL != "" {
			line += "  " + run.ReviewURL
		}
		if i == m.selectedRow {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + runStatusStyle(run.Status).Render(line)
		}
		b.WriteString(line + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderTasks(run *domain.Run) string {
	if len(m.tasks) == 0 {
		return dimmedStyle.Render("no tasks planned")
	}

	var b strings.Builder
	b.WriteString(fmt.Sprintf("Tasks for %s\n", run.ID))
	for _, t := range m.tasks {
		marker := " "
		if t.Index == run.CurrentTask && !run.Status.Terminal() {
			marker = "*"
		}
		line := fmt.Sprintf("%s %2d  %-14s %d/%d  %s", marker, t.Index, t.Status, t.Iterations, domain.DefaultMaxIterations, t.Title)
		if t.BlockedFor != "" {
			line += dimmedStyle.Render("  (" + t.BlockedFor + ")")
		}
		b.WriteString(taskStatusStyle(t.Status).Render(line) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderLogs() string {
	var b strings.Builder
	b.WriteString("Recent activity\n")
	for _, entry := range m.logs {
		b.WriteString(dimmedStyle.Render(fmt.Sprintf("%s [%s] %s", entry.Timestamp.Format("15:04:05"), entry.Level, entry.Message)) + "\n")
	}
	return strings.TrimRight(b.String(), "\n")
}

func runStatusStyle(s domain.RunStatus) lipgloss.Style {
	switch s {
	case domain.RunCompleted:
		return doneStyle
	case domain.RunFailed:
		return failedStyle
	case domain.RunCancelled:
		return dimmedStyle
	case domain.RunAwaitingReview, domain.RunNeedsClarification:
		return activeStyle
	default:
		return lipgloss.NewStyle()
	}
}

func taskStatusStyle(s domain.TaskStatus) lipgloss.Style {
	switch s {
	case domain.TaskApproved:
		return doneStyle
	case domain.TaskBlocked:
		return failedStyle
	case domain.TaskInDevelopment, domain.TaskInReview:
		return activeStyle
	default:
		return dimmedStyle
	}
}
