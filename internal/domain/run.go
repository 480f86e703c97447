package domain

import "time"

// Run is one attempt to resolve one issue. A run owns exactly one
// workspace for its entire lifetime; WorkspaceReleased records whether
// that workspace has been torn down, so a restart sweep can reconcile
// workspaces left behind by a crash.
type Run struct {
	ID                string
	IssueID           string
	Repo              string
	BaseRef           string
	Branch            string
	Status            RunStatus
	CurrentTask       int // index into the run's ordered task list, -1 before planning
	WorkspaceReleased bool
	CancelRequested   bool // honored at the next checkpoint boundary
	ReviewURL         string
	Error             string
	StartedAt         *time.Time
	FinishedAt        *time.Time
}

// LogEntry is a persisted log line scoped to one run
type LogEntry struct {
	ID        int
	RunID     string
	Timestamp time.Time
	Level     string
	Message   string
}

// ChangeSet is the single reviewable result assembled from a completed
// run, referencing the final artifact of every approved task.
type ChangeSet struct {
	RunID       string
	Branch      string
	Title       string
	Body        string
	ArtifactIDs []string
}
