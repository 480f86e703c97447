// Package llm abstracts the inference backend every agent role calls into.
package llm

import "context"

// RoleContext carries per-call settings for a role invocation. WorkDir is
// the only piece of workspace state that crosses this boundary.
type RoleContext struct {
	Role    string
	WorkDir string
	Model   string
}

// Backend completes a prompt for a role. Implementations must return a
// *domain.TransientError for timeouts and transport problems so callers
// can retry with backoff.
type Backend interface {
	Complete(ctx context.Context, prompt string, rc RoleContext) (string, error)
}
