// Package roles defines the agent roles the orchestrator drives. Each role
// is a single-operation interface so the underlying model or prompt can be
// swapped per role without touching the state machine.
package roles

import (
	"context"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// Planner decomposes an issue into ordered, independently verifiable task
// drafts. Returns domain.ErrClarificationNeeded when the issue's intent
// cannot be decomposed unambiguously.
type Planner interface {
	Plan(ctx context.Context, issue *domain.Issue) ([]domain.TaskDraft, error)
}

// Implementer proposes a patch for a task. On a retry, priorFeedback holds
// the reviewer's last rejection reasons.
type Implementer interface {
	Propose(ctx context.Context, task *domain.Task, priorFeedback []string) (domain.Patch, error)
}

// Reviewer evaluates a patch strictly against the task's acceptance
// criterion and repository conventions. Its input is limited to the
// criterion, the patch and the repository state; the implementer's
// reasoning never reaches it.
type Reviewer interface {
	Evaluate(ctx context.Context, task *domain.Task, patch domain.Patch) (domain.Verdict, error)
}

// RequirementChecker confirms the patch's intent actually satisfies the
// acceptance criterion, a semantic check distinct from the reviewer's
// structural one.
type RequirementChecker interface {
	Verify(ctx context.Context, task *domain.Task, patch domain.Patch) (bool, []string, error)
}

// TestRunner executes or synthesizes tests for a patch. Environment
// failures unrelated to the patch surface as TestInconclusive, never as
// TestFail.
type TestRunner interface {
	Run(ctx context.Context, patch domain.Patch) (domain.TestOutcome, string, error)
}
