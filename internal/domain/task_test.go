package domain

import "testing"

func TestTask_IsReady(t *testing.T) {
	task := &Task{Index: 2, Status: TaskPending, DependsOn: []int{0, 1}}

	if task.IsReady(map[int]bool{0: true}) {
		t.Error("IsReady = true with unapproved dependency, want false")
	}
	if !task.IsReady(map[int]bool{0: true, 1: true}) {
		t.Error("IsReady = false with all dependencies approved, want true")
	}
}

func TestTask_IsReady_NotPending(t *testing.T) {
	task := &Task{Index: 0, Status: TaskApproved}
	if task.IsReady(map[int]bool{}) {
		t.Error("IsReady = true for approved task, want false")
	}
}

func TestPatch_IsEmpty(t *testing.T) {
	if !(Patch{Diff: "  \n\t"}).IsEmpty() {
		t.Error("whitespace-only diff should be empty")
	}
	if (Patch{Diff: "--- a/x\n+++ b/x\n@@ -1 +1 @@\n-a\n+b\n"}).IsEmpty() {
		t.Error("real diff should not be empty")
	}
}

func TestRunStatus_Terminal(t *testing.T) {
	terminal := []RunStatus{RunCompleted, RunFailed, RunCancelled}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s.Terminal() = false, want true", s)
		}
	}
	open := []RunStatus{RunCreated, RunPlanning, RunInProgress, RunAwaitingReview, RunNeedsClarification}
	for _, s := range open {
		if s.Terminal() {
			t.Errorf("%s.Terminal() = true, want false", s)
		}
	}
}

func TestIssue_Validate(t *testing.T) {
	issue := &Issue{ID: "42", Title: "Reject empty payloads", Repo: "acme/api"}
	if err := issue.Validate(); err != nil {
		t.Errorf("Validate() = %v, want nil", err)
	}

	bad := &Issue{ID: "43", Title: "   ", Repo: "acme/api"}
	if err := bad.Validate(); err == nil {
		t.Error("Validate() = nil for blank title, want error")
	}
}
