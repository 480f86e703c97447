package roles

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/llm"
	"github.com/hochfrequenz/issue-orchestrator/internal/prompts"
)

// envRetries bounds how often an environment-level failure is retried
// before the run is reported inconclusive
const envRetries = 2

type testReply struct {
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// LLMTestRunner executes tests via the inference backend
type LLMTestRunner struct {
	backend    llm.Backend
	loader     *prompts.Loader
	model      string
	workDir    string
	retryDelay time.Duration
}

// NewLLMTestRunner creates a test runner working in the given directory
func NewLLMTestRunner(backend llm.Backend, loader *prompts.Loader, model, workDir string) *LLMTestRunner {
	return &LLMTestRunner{backend: backend, loader: loader, model: model, workDir: workDir, retryDelay: 2 * time.Second}
}

// Run applies the patch and runs tests, consolidating to one outcome.
// Environment failures are retried a small bounded number of times and
// then reported as inconclusive, never as fail.
func (t *LLMTestRunner) Run(ctx context.Context, patch domain.Patch) (domain.TestOutcome, string, error) {
	prompt, err := t.loader.Execute("roles/testrunner.md", map[string]string{
		"WorkDir": t.workDir,
		"Diff":    patch.Diff,
	})
	if err != nil {
		return "", "", err
	}

	var lastDetail string
	for attempt := 0; attempt <= envRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.TestInconclusive, lastDetail, nil
			case <-time.After(t.retryDelay):
			}
		}

		output, err := t.backend.Complete(ctx, prompt, llm.RoleContext{Role: "test_runner", WorkDir: t.workDir, Model: t.model})
		if err != nil {
			if domain.IsTransient(err) {
				lastDetail = err.Error()
				continue
			}
			return "", "", err
		}

		outcome, detail, err := parseTestReply(output)
		if err != nil {
			return "", "", err
		}
		if outcome == domain.TestInconclusive {
			lastDetail = detail
			continue
		}
		return outcome, detail, nil
	}

	return domain.TestInconclusive, lastDetail, nil
}

func parseTestReply(output string) (domain.TestOutcome, string, error) {
	data, err := llm.ExtractJSON(output)
	if err != nil {
		return "", "", fmt.Errorf("test runner reply: %w", err)
	}
	var reply testReply
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", "", fmt.Errorf("test runner reply: %w", err)
	}
	switch domain.TestOutcome(reply.Outcome) {
	case domain.TestPass, domain.TestFail, domain.TestInconclusive:
		return domain.TestOutcome(reply.Outcome), reply.Detail, nil
	}
	return "", "", fmt.Errorf("test runner reply: unknown outcome %q", reply.Outcome)
}
