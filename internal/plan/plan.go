// Package plan decides which task of a run executes next. Tasks within a
// run are strictly serial; this only picks the next ready one and decides
// when the run as a whole is done.
package plan

import (
	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// ApprovedSet returns the indexes of approved tasks
func ApprovedSet(tasks []*domain.Task) map[int]bool {
	approved := make(map[int]bool)
	for _, t := range tasks {
		if t.Status == domain.TaskApproved {
			approved[t.Index] = true
		}
	}
	return approved
}

// NextReady returns the first pending task whose dependencies are all
// approved, or -1 if none is runnable. Tasks execute in plan order, so
// the first ready one is always the next one.
func NextReady(tasks []*domain.Task) int {
	approved := ApprovedSet(tasks)
	for _, t := range tasks {
		if t.IsReady(approved) {
			return t.Index
		}
	}
	return -1
}

// InFlight returns the index of the task caught mid-iteration, or -1.
// After a crash this is the task the run resumes with.
func InFlight(tasks []*domain.Task) int {
	for _, t := range tasks {
		if t.Status == domain.TaskInDevelopment || t.Status == domain.TaskInReview {
			return t.Index
		}
	}
	return -1
}

// AllApproved reports whether every task reached approval
func AllApproved(tasks []*domain.Task) bool {
	for _, t := range tasks {
		if t.Status != domain.TaskApproved {
			return false
		}
	}
	return len(tasks) > 0
}

// AnyBlocked reports whether at least one task is blocked
func AnyBlocked(tasks []*domain.Task) bool {
	for _, t := range tasks {
		if t.Status == domain.TaskBlocked {
			return true
		}
	}
	return false
}

// Stalled reports whether the run can make no further progress: nothing is
// ready, nothing is mid-flight, and not everything is approved. This is
// the paused/partial state a blocked task leaves behind.
func Stalled(tasks []*domain.Task) bool {
	if AllApproved(tasks) {
		return false
	}
	for _, t := range tasks {
		if t.Status == domain.TaskInDevelopment || t.Status == domain.TaskInReview {
			return false
		}
	}
	return NextReady(tasks) == -1
}

// BlockDependents marks pending tasks that transitively depend on a
// blocked task. They can never run, so surfacing them as blocked keeps
// the status query honest.
func BlockDependents(tasks []*domain.Task) []int {
	blocked := make(map[int]bool)
	for _, t := range tasks {
		if t.Status == domain.TaskBlocked {
			blocked[t.Index] = true
		}
	}

	var newlyBlocked []int
	// Plan order guarantees dependencies come first, so one pass suffices
	for _, t := range tasks {
		if t.Status != domain.TaskPending {
			continue
		}
		for _, dep := range t.DependsOn {
			if blocked[dep] {
				blocked[t.Index] = true
				newlyBlocked = append(newlyBlocked, t.Index)
				break
			}
		}
	}
	return newlyBlocked
}
