package roles

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/llm"
	"github.com/hochfrequenz/issue-orchestrator/internal/prompts"
)

type checkerReply struct {
	Pass    bool     `json:"pass"`
	Reasons []string `json:"reasons,omitempty"`
}

// LLMRequirementChecker verifies patch intent via the inference backend
type LLMRequirementChecker struct {
	backend llm.Backend
	loader  *prompts.Loader
	model   string
	workDir string
}

// NewLLMRequirementChecker creates a requirement checker
func NewLLMRequirementChecker(backend llm.Backend, loader *prompts.Loader, model, workDir string) *LLMRequirementChecker {
	return &LLMRequirementChecker{backend: backend, loader: loader, model: model, workDir: workDir}
}

// Verify confirms the patch's intent satisfies the acceptance criterion
func (c *LLMRequirementChecker) Verify(ctx context.Context, task *domain.Task, patch domain.Patch) (bool, []string, error) {
	prompt, err := c.loader.Execute("roles/checker.md", map[string]string{
		"Criterion": task.Criterion,
		"Diff":      patch.Diff,
	})
	if err != nil {
		return false, nil, err
	}

	output, err := c.backend.Complete(ctx, prompt, llm.RoleContext{Role: "requirement_checker", WorkDir: c.workDir, Model: c.model})
	if err != nil {
		return false, nil, err
	}

	data, err := llm.ExtractJSON(output)
	if err != nil {
		return false, nil, fmt.Errorf("checker reply: %w", err)
	}
	var reply checkerReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return false, nil, fmt.Errorf("checker reply: %w", err)
	}
	return reply.Pass, reply.Reasons, nil
}
