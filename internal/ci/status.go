// Package ci reads CI results for commits. Read-only: the orchestrator
// consumes CI outcomes but never triggers builds.
package ci

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// Reader reports the CI status of a ref in a repository
type Reader interface {
	Status(ctx context.Context, repo, commitRef string) (domain.CIStatus, error)
}

// GHReader implements Reader with the gh CLI
type GHReader struct{}

// NewGHReader creates a CI reader backed by the gh CLI
func NewGHReader() *GHReader {
	return &GHReader{}
}

type checkRun struct {
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
}

// Status consolidates all check runs for a commit into one status
func (r *GHReader) Status(ctx context.Context, repo, commitRef string) (domain.CIStatus, error) {
	cmd := exec.CommandContext(ctx, "gh", "api",
		fmt.Sprintf("repos/%s/commits/%s/check-runs", repo, commitRef),
		"--jq", "[.check_runs[] | {status, conclusion}]")

	output, err := cmd.Output()
	if err != nil {
		return "", &domain.TransientError{Op: "gh api check-runs", Err: err}
	}
	return Consolidate(output)
}

// Consolidate folds a list of check runs into a single status: any
// failure fails the commit, any unfinished run keeps it pending.
func Consolidate(data []byte) (domain.CIStatus, error) {
	var runs []checkRun
	if err := json.Unmarshal(data, &runs); err != nil {
		return "", fmt.Errorf("parse check runs: %w", err)
	}
	if len(runs) == 0 {
		return domain.CIPending, nil
	}

	status := domain.CIPass
	for _, run := range runs {
		if run.Status != "completed" {
			status = domain.CIPending
			continue
		}
		switch run.Conclusion {
		case "success", "neutral", "skipped":
		default:
			return domain.CIFail, nil
		}
	}
	return status, nil
}
