package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

type fakeProvider struct {
	runs  []*domain.Run
	tasks map[string][]*domain.Task
}

func (f *fakeProvider) ListRuns(status domain.RunStatus) ([]*domain.Run, error) {
	return f.runs, nil
}

func (f *fakeProvider) ListTasks(runID string) ([]*domain.Task, error) {
	return f.tasks[runID], nil
}

func (f *fakeProvider) ListLogs(runID string, limit int) ([]*domain.LogEntry, error) {
	return nil, nil
}

type fakeCanceller struct {
	cancelled []string
}

func (f *fakeCanceller) Cancel(runID string) error {
	f.cancelled = append(f.cancelled, runID)
	return nil
}

func testModel() (Model, *fakeCanceller) {
	provider := &fakeProvider{
		runs: []*domain.Run{
			{ID: "r1", IssueID: "1", Status: domain.RunInProgress, CurrentTask: 0},
			{ID: "r2", IssueID: "2", Status: domain.RunCompleted},
		},
		tasks: map[string][]*domain.Task{
			"r1": {{RunID: "r1", Index: 0, Title: "first", Status: domain.TaskInDevelopment, Iterations: 1}},
		},
	}
	canceller := &fakeCanceller{}
	model := NewModel(provider, canceller)
	model.width = 120
	model.height = 40
	return model, canceller
}

func TestModel_RefreshLoadsRuns(t *testing.T) {
	model, _ := testModel()

	newModel, _ := model.Update(RefreshMsg{Runs: []*domain.Run{
		{ID: "r1", Status: domain.RunInProgress},
	}})
	model = newModel.(Model)

	if len(model.runs) != 1 {
		t.Fatalf("runs count = %d, want 1", len(model.runs))
	}
	if got := model.SelectedRun(); got == nil || got.ID != "r1" {
		t.Errorf("SelectedRun = %v, want r1", got)
	}
}

func TestModel_Navigation(t *testing.T) {
	model, _ := testModel()
	newModel, _ := model.Update(RefreshMsg{Runs: []*domain.Run{
		{ID: "r1", Status: domain.RunInProgress},
		{ID: "r2", Status: domain.RunCompleted},
	}})
	model = newModel.(Model)

	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model = newModel.(Model)
	if model.selectedRow != 1 {
		t.Errorf("selectedRow = %d after j, want 1", model.selectedRow)
	}

	// Stays in range at the bottom
	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")})
	model = newModel.(Model)
	if model.selectedRow != 1 {
		t.Errorf("selectedRow = %d past end, want 1", model.selectedRow)
	}

	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("k")})
	model = newModel.(Model)
	if model.selectedRow != 0 {
		t.Errorf("selectedRow = %d after k, want 0", model.selectedRow)
	}
}

func TestModel_CancelSelectedRun(t *testing.T) {
	model, canceller := testModel()
	newModel, _ := model.Update(RefreshMsg{Runs: []*domain.Run{
		{ID: "r1", Status: domain.RunInProgress},
	}})
	model = newModel.(Model)

	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	model = newModel.(Model)

	if len(canceller.cancelled) != 1 || canceller.cancelled[0] != "r1" {
		t.Errorf("cancelled = %v, want [r1]", canceller.cancelled)
	}
	if !strings.Contains(model.statusLine, "r1") {
		t.Errorf("statusLine = %q, want cancellation notice", model.statusLine)
	}
}

func TestModel_CancelSkipsTerminalRun(t *testing.T) {
	model, canceller := testModel()
	newModel, _ := model.Update(RefreshMsg{Runs: []*domain.Run{
		{ID: "r2", Status: domain.RunCompleted},
	}})
	model = newModel.(Model)

	newModel, _ = model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	_ = newModel

	if len(canceller.cancelled) != 0 {
		t.Errorf("cancelled terminal run: %v", canceller.cancelled)
	}
}

func TestView_RendersRunsAndTasks(t *testing.T) {
	model, _ := testModel()
	newModel, _ := model.Update(RefreshMsg{
		Runs:  []*domain.Run{{ID: "r1", IssueID: "1", Status: domain.RunInProgress}},
		Tasks: []*domain.Task{{RunID: "r1", Index: 0, Title: "wire the retry loop", Status: domain.TaskInReview, Iterations: 2}},
	})
	model = newModel.(Model)

	view := model.View()
	if !strings.Contains(view, "r1") {
		t.Error("view missing run id")
	}
	if !strings.Contains(view, "wire the retry loop") {
		t.Error("view missing task title")
	}
	if !strings.Contains(view, "in_review") {
		t.Error("view missing task status")
	}
}

func TestView_EmptyState(t *testing.T) {
	model, _ := testModel()
	view := model.View()
	if !strings.Contains(view, "no runs yet") {
		t.Error("empty view missing placeholder")
	}
}
