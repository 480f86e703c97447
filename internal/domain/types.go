package domain

// RunStatus represents the lifecycle state of a run
type RunStatus string

const (
	RunCreated            RunStatus = "created"
	RunPlanning           RunStatus = "planning"
	RunInProgress         RunStatus = "in_progress"
	RunAwaitingReview     RunStatus = "awaiting_review"
	RunNeedsClarification RunStatus = "needs_clarification"
	RunCompleted          RunStatus = "completed"
	RunFailed             RunStatus = "failed"
	RunCancelled          RunStatus = "cancelled"
)

// Terminal returns true if the run can never advance again
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}

// TaskStatus represents the lifecycle state of a task
type TaskStatus string

const (
	TaskPending       TaskStatus = "pending"
	TaskInDevelopment TaskStatus = "in_development"
	TaskInReview      TaskStatus = "in_review"
	TaskApproved      TaskStatus = "approved"
	TaskBlocked       TaskStatus = "blocked"
)

// Terminal returns true if the task can never advance again
func (s TaskStatus) Terminal() bool {
	return s == TaskApproved || s == TaskBlocked
}

// TestOutcome is the consolidated result of a test-runner invocation.
// Inconclusive marks environment noise that must not consume iteration budget.
type TestOutcome string

const (
	TestPass         TestOutcome = "pass"
	TestFail         TestOutcome = "fail"
	TestInconclusive TestOutcome = "inconclusive"
)

// CIStatus is the read-only status reported by the CI system for a commit
type CIStatus string

const (
	CIPending CIStatus = "pending"
	CIPass    CIStatus = "pass"
	CIFail    CIStatus = "fail"
)
