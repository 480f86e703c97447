package roles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/llm"
	"github.com/hochfrequenz/issue-orchestrator/internal/prompts"
)

// LLMImplementer proposes patches via the inference backend
type LLMImplementer struct {
	backend llm.Backend
	loader  *prompts.Loader
	model   string
	workDir string
}

// NewLLMImplementer creates an implementer working in the given directory
func NewLLMImplementer(backend llm.Backend, loader *prompts.Loader, model, workDir string) *LLMImplementer {
	return &LLMImplementer{backend: backend, loader: loader, model: model, workDir: workDir}
}

// Propose produces a patch for the task, incorporating prior reviewer feedback
func (im *LLMImplementer) Propose(ctx context.Context, task *domain.Task, priorFeedback []string) (domain.Patch, error) {
	prompt, err := im.loader.Execute("roles/implementer.md", map[string]interface{}{
		"WorkDir":   im.workDir,
		"Title":     task.Title,
		"Criterion": task.Criterion,
		"Feedback":  priorFeedback,
	})
	if err != nil {
		return domain.Patch{}, err
	}

	output, err := im.backend.Complete(ctx, prompt, llm.RoleContext{Role: "implementer", WorkDir: im.workDir, Model: im.model})
	if err != nil {
		return domain.Patch{}, err
	}

	data, err := llm.ExtractJSON(output)
	if err != nil {
		return domain.Patch{}, fmt.Errorf("implementer reply: %w", err)
	}
	var patch domain.Patch
	if err := json.Unmarshal(data, &patch); err != nil {
		return domain.Patch{}, fmt.Errorf("implementer reply: %w", err)
	}
	return patch, nil
}
