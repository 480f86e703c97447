// Package githost talks to the version-control host. The orchestrator
// only needs three operations: establish a working copy, record a change
// set on a branch, and submit that branch for review.
package githost

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// hostNamespace is a fixed UUID namespace for deriving branch names from
// run ids, so a retried submission lands on the same branch instead of
// creating a duplicate.
var hostNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// Host is the version-control host interface
type Host interface {
	CloneWorkingCopy(ctx context.Context, repo, ref, dest string) error
	RecordChange(ctx context.Context, workDir, branch string, patch domain.Patch, message string) error
	SubmitForReview(ctx context.Context, workDir, branch, title, body string) (string, error)
}

// BranchName derives the deterministic branch for a run
func BranchName(runID string) string {
	short := uuid.NewSHA1(hostNamespace, []byte(runID)).String()[:8]
	return fmt.Sprintf("orch/%s-%s", runID, short)
}
