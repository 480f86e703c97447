package domain

import "time"

// TaskDraft is the planner's output before a task is persisted: a unit of
// work with an explicit, human-readable acceptance criterion. DependsOn
// holds indexes of earlier drafts in the same plan.
type TaskDraft struct {
	Title     string `json:"title"`
	Criterion string `json:"criterion"`
	DependsOn []int  `json:"depends_on,omitempty"`
}

// Task is an independently verifiable unit of work derived from an issue.
// It belongs to exactly one run and is identified by its position in the
// run's ordered task list.
type Task struct {
	RunID      string
	Index      int
	Title      string
	Criterion  string
	Status     TaskStatus
	DependsOn  []int
	Iterations int // iterations consumed so far
	BlockedFor string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsReady returns true if the task is pending and every dependency is approved
func (t *Task) IsReady(approved map[int]bool) bool {
	if t.Status != TaskPending {
		return false
	}
	for _, dep := range t.DependsOn {
		if !approved[dep] {
			return false
		}
	}
	return true
}
