package domain

import (
	"strings"
	"time"
)

// DefaultMaxIterations caps the propose/review cycles per task
const DefaultMaxIterations = 5

// Patch is an immutable proposed code change plus the implementer's
// self-reported verification evidence.
type Patch struct {
	Diff     string `json:"diff"`
	Summary  string `json:"summary"`
	Evidence string `json:"evidence,omitempty"`
}

// IsEmpty reports whether the patch contains no effective change.
// Two consecutive empty patches block a task immediately.
func (p Patch) IsEmpty() bool {
	return strings.TrimSpace(p.Diff) == ""
}

// Verdict is the reviewer's decision on a patch
type Verdict struct {
	Approve bool     `json:"approve"`
	Reasons []string `json:"reasons,omitempty"`
}

// Reject builds a rejecting verdict with the given reasons
func Reject(reasons ...string) Verdict {
	return Verdict{Approve: false, Reasons: reasons}
}

// Iteration is one propose/review cycle inside a task. Index is 1-based.
type Iteration struct {
	RunID     string
	TaskIndex int
	Index     int
	Patch     Patch
	Verdict   Verdict
	Tests     TestOutcome
	StartedAt time.Time
}

// Artifact is an append-only record of the patch and report produced by
// one iteration. A new iteration produces a new artifact, never an edit.
type Artifact struct {
	ID        string
	RunID     string
	TaskIndex int
	Iteration int
	Kind      string // "patch" or "report"
	Content   string
	CreatedAt time.Time
}
