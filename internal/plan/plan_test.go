package plan

import (
	"testing"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

func mkTasks(statuses []domain.TaskStatus, deps map[int][]int) []*domain.Task {
	tasks := make([]*domain.Task, len(statuses))
	for i, s := range statuses {
		tasks[i] = &domain.Task{Index: i, Status: s, DependsOn: deps[i]}
	}
	return tasks
}

func TestNextReady_SerialOrder(t *testing.T) {
	tasks := mkTasks(
		[]domain.TaskStatus{domain.TaskApproved, domain.TaskPending, domain.TaskPending},
		map[int][]int{1: {0}, 2: {1}},
	)

	if got := NextReady(tasks); got != 1 {
		t.Errorf("NextReady = %d, want 1", got)
	}
}

func TestNextReady_NoneReady(t *testing.T) {
	tasks := mkTasks(
		[]domain.TaskStatus{domain.TaskBlocked, domain.TaskPending},
		map[int][]int{1: {0}},
	)

	if got := NextReady(tasks); got != -1 {
		t.Errorf("NextReady = %d, want -1", got)
	}
}

func TestNextReady_IndependentTaskProceedsPastBlocked(t *testing.T) {
	tasks := mkTasks(
		[]domain.TaskStatus{domain.TaskBlocked, domain.TaskPending},
		map[int][]int{},
	)

	if got := NextReady(tasks); got != 1 {
		t.Errorf("NextReady = %d, want 1 (independent of blocked task)", got)
	}
}

func TestAllApproved(t *testing.T) {
	tasks := mkTasks([]domain.TaskStatus{domain.TaskApproved, domain.TaskApproved}, nil)
	if !AllApproved(tasks) {
		t.Error("AllApproved = false, want true")
	}
	if AllApproved(nil) {
		t.Error("AllApproved(nil) = true, want false")
	}
}

func TestStalled(t *testing.T) {
	// Only task blocked: stalled
	tasks := mkTasks([]domain.TaskStatus{domain.TaskBlocked}, nil)
	if !Stalled(tasks) {
		t.Error("Stalled = false for single blocked task, want true")
	}

	// Blocked plus an independent pending task: not stalled
	tasks = mkTasks([]domain.TaskStatus{domain.TaskBlocked, domain.TaskPending}, nil)
	if Stalled(tasks) {
		t.Error("Stalled = true with a runnable task, want false")
	}

	// All approved: not stalled
	tasks = mkTasks([]domain.TaskStatus{domain.TaskApproved}, nil)
	if Stalled(tasks) {
		t.Error("Stalled = true for completed plan, want false")
	}
}

func TestBlockDependents_Transitive(t *testing.T) {
	tasks := mkTasks(
		[]domain.TaskStatus{domain.TaskBlocked, domain.TaskPending, domain.TaskPending, domain.TaskPending},
		map[int][]int{1: {0}, 2: {1}, 3: {}},
	)

	got := BlockDependents(tasks)
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Errorf("BlockDependents = %v, want [1 2]", got)
	}
}

func TestInFlight(t *testing.T) {
	tasks := mkTasks(
		[]domain.TaskStatus{domain.TaskApproved, domain.TaskInReview, domain.TaskPending},
		map[int][]int{1: {0}, 2: {1}},
	)
	if got := InFlight(tasks); got != 1 {
		t.Errorf("InFlight = %d, want 1", got)
	}

	tasks[1].Status = domain.TaskApproved
	if got := InFlight(tasks); got != -1 {
		t.Errorf("InFlight = %d, want -1 with nothing mid-iteration", got)
	}
}
