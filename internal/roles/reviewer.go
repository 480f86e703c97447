package roles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/llm"
	"github.com/hochfrequenz/issue-orchestrator/internal/prompts"
)

// LLMReviewer evaluates patches via the inference backend. Its prompt is
// built from the acceptance criterion and the patch alone; nothing the
// implementer produced besides the patch itself ever enters it. That
// boundary is what keeps the review independent instead of self-approval.
type LLMReviewer struct {
	backend llm.Backend
	loader  *prompts.Loader
	model   string
	workDir string
}

// NewLLMReviewer creates a reviewer working in the given directory
func NewLLMReviewer(backend llm.Backend, loader *prompts.Loader, model, workDir string) *LLMReviewer {
	return &LLMReviewer{backend: backend, loader: loader, model: model, workDir: workDir}
}

// Evaluate judges the patch against the task's acceptance criterion
func (r *LLMReviewer) Evaluate(ctx context.Context, task *domain.Task, patch domain.Patch) (domain.Verdict, error) {
	prompt, err := r.loader.Execute("roles/reviewer.md", map[string]string{
		"WorkDir":   r.workDir,
		"Criterion": task.Criterion,
		"Diff":      patch.Diff,
	})
	if err != nil {
		return domain.Verdict{}, err
	}

	output, err := r.backend.Complete(ctx, prompt, llm.RoleContext{Role: "reviewer", WorkDir: r.workDir, Model: r.model})
	if err != nil {
		return domain.Verdict{}, err
	}

	data, err := llm.ExtractJSON(output)
	if err != nil {
		return domain.Verdict{}, fmt.Errorf("reviewer reply: %w", err)
	}
	var verdict domain.Verdict
	if err := json.Unmarshal(data, &verdict); err != nil {
		return domain.Verdict{}, fmt.Errorf("reviewer reply: %w", err)
	}
	if !verdict.Approve && len(verdict.Reasons) == 0 {
		verdict.Reasons = []string{"rejected without stated reasons"}
	}
	return verdict, nil
}
