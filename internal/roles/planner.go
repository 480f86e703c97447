package roles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/llm"
	"github.com/hochfrequenz/issue-orchestrator/internal/prompts"
)

type plannerReply struct {
	NeedsClarification bool               `json:"needs_clarification"`
	Question           string             `json:"question,omitempty"`
	Tasks              []domain.TaskDraft `json:"tasks"`
}

// LLMPlanner decomposes issues via the inference backend
type LLMPlanner struct {
	backend llm.Backend
	loader  *prompts.Loader
	model   string
}

// NewLLMPlanner creates a planner backed by the given inference backend
func NewLLMPlanner(backend llm.Backend, loader *prompts.Loader, model string) *LLMPlanner {
	return &LLMPlanner{backend: backend, loader: loader, model: model}
}

// Plan decomposes the issue into ordered task drafts
func (p *LLMPlanner) Plan(ctx context.Context, issue *domain.Issue) ([]domain.TaskDraft, error) {
	prompt, err := p.loader.Execute("roles/planner.md", map[string]string{
		"Repo":    issue.Repo,
		"IssueID": issue.ID,
		"Title":   issue.Title,
		"Body":    issue.Body,
	})
	if err != nil {
		return nil, err
	}

	output, err := p.backend.Complete(ctx, prompt, llm.RoleContext{Role: "planner", Model: p.model})
	if err != nil {
		return nil, err
	}

	data, err := llm.ExtractJSON(output)
	if err != nil {
		return nil, fmt.Errorf("planner reply: %w", err)
	}
	var reply plannerReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return nil, fmt.Errorf("planner reply: %w", err)
	}

	if reply.NeedsClarification {
		return nil, fmt.Errorf("%w: %s", domain.ErrClarificationNeeded, reply.Question)
	}
	if len(reply.Tasks) == 0 {
		return nil, fmt.Errorf("%w: planner produced no tasks", domain.ErrClarificationNeeded)
	}
	if err := validateDrafts(reply.Tasks); err != nil {
		return nil, err
	}
	return reply.Tasks, nil
}

// validateDrafts rejects plans whose dependencies point forward or out of range
func validateDrafts(drafts []domain.TaskDraft) error {
	for i, d := range drafts {
		if d.Criterion == "" {
			return fmt.Errorf("task %d (%s): missing acceptance criterion", i, d.Title)
		}
		for _, dep := range d.DependsOn {
			if dep < 0 || dep >= i {
				return fmt.Errorf("task %d (%s): dependency %d out of order", i, d.Title, dep)
			}
		}
	}
	return nil
}
