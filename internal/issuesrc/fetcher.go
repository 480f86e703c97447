// Package issuesrc fetches issues from the tracker via the gh CLI.
package issuesrc

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// Source provides validated issues by id
type Source interface {
	Fetch(ctx context.Context, issueID string) (*domain.Issue, error)
}

// Fetcher implements Source with the gh CLI
type Fetcher struct {
	repo    string
	baseRef string
}

// NewFetcher creates a fetcher for the given owner/name repository
func NewFetcher(repo, baseRef string) *Fetcher {
	return &Fetcher{repo: repo, baseRef: baseRef}
}

type ghIssue struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
}

// Fetch retrieves one issue by number
func (f *Fetcher) Fetch(ctx context.Context, issueID string) (*domain.Issue, error) {
	cmd := exec.CommandContext(ctx, "gh", "issue", "view", issueID,
		"--repo", f.repo,
		"--json", "number,title,body")

	output, err := cmd.Output()
	if err != nil {
		return nil, &domain.TransientError{Op: "gh issue view", Err: err}
	}

	issue, err := ParseIssue(output, f.repo, f.baseRef)
	if err != nil {
		return nil, fmt.Errorf("issue %s: %w", issueID, err)
	}
	return issue, nil
}

// ParseIssue converts gh JSON output into a domain issue
func ParseIssue(data []byte, repo, baseRef string) (*domain.Issue, error) {
	var gh ghIssue
	if err := json.Unmarshal(data, &gh); err != nil {
		return nil, fmt.Errorf("parse gh output: %w", err)
	}

	issue := &domain.Issue{
		ID:         fmt.Sprintf("%d", gh.Number),
		Title:      gh.Title,
		Body:       gh.Body,
		Repo:       repo,
		BaseRef:    baseRef,
		ReceivedAt: time.Now(),
	}
	if err := issue.Validate(); err != nil {
		return nil, err
	}
	return issue, nil
}

// Lister enumerates open issues awaiting orchestration
type Lister interface {
	List(ctx context.Context) ([]*domain.Issue, error)
}

// OrchestrationLabel marks tracker issues the poller may pick up
const OrchestrationLabel = "orchestrate"

// List returns open issues carrying the orchestration label
func (f *Fetcher) List(ctx context.Context) ([]*domain.Issue, error) {
	cmd := exec.CommandContext(ctx, "gh", "issue", "list",
		"--repo", f.repo,
		"--label", OrchestrationLabel,
		"--state", "open",
		"--json", "number,title,body")

	output, err := cmd.Output()
	if err != nil {
		return nil, &domain.TransientError{Op: "gh issue list", Err: err}
	}

	var raw []ghIssue
	if err := json.Unmarshal(output, &raw); err != nil {
		return nil, fmt.Errorf("parse gh output: %w", err)
	}

	issues := make([]*domain.Issue, 0, len(raw))
	for _, gh := range raw {
		issue := &domain.Issue{
			ID:         fmt.Sprintf("%d", gh.Number),
			Title:      gh.Title,
			Body:       gh.Body,
			Repo:       f.repo,
			BaseRef:    f.baseRef,
			ReceivedAt: time.Now(),
		}
		if err := issue.Validate(); err != nil {
			continue // skip malformed issues, the rest still flow
		}
		issues = append(issues, issue)
	}
	return issues, nil
}
