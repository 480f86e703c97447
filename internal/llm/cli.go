package llm

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// CLIBackend completes prompts by spawning the claude binary in print mode
type CLIBackend struct {
	Binary string // defaults to "claude"
}

// NewCLIBackend creates a backend using the claude CLI
func NewCLIBackend() *CLIBackend {
	return &CLIBackend{Binary: "claude"}
}

// Complete runs one non-interactive completion in the role's working directory
func (b *CLIBackend) Complete(ctx context.Context, prompt string, rc RoleContext) (string, error) {
	binary := b.Binary
	if binary == "" {
		binary = "claude"
	}

	args := []string{
		"--print",
		"--dangerously-skip-permissions",
		"--output-format", "text",
	}
	if rc.Model != "" {
		args = append(args, "--model", rc.Model)
	}
	args = append(args, "-p", prompt)

	cmd := exec.CommandContext(ctx, binary, args...)
	if rc.WorkDir != "" {
		cmd.Dir = rc.WorkDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", &domain.TransientError{Op: rc.Role + " completion", Err: ctxErr}
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", &domain.TransientError{
				Op:  rc.Role + " completion",
				Err: fmt.Errorf("%s exited: %w: %s", binary, err, stderr.String()),
			}
		}
		return "", fmt.Errorf("%s agent: %w", rc.Role, err)
	}

	return stdout.String(), nil
}
