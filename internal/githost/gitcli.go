package githost

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// GitCLI implements Host with the git and gh binaries
type GitCLI struct {
	HostURL string // defaults to https://github.com
}

// NewGitCLI creates a Host backed by the git and gh CLIs
func NewGitCLI() *GitCLI {
	return &GitCLI{HostURL: "https://github.com"}
}

func (g *GitCLI) cloneURL(repo string) string {
	base := g.HostURL
	if base == "" {
		base = "https://github.com"
	}
	return base + "/" + repo + ".git"
}

// CloneWorkingCopy clones repo at ref into dest. Any failure removes dest
// so no partial working copy survives.
func (g *GitCLI) CloneWorkingCopy(ctx context.Context, repo, ref, dest string) error {
	args := []string{"clone", "--single-branch"}
	if ref != "" {
		args = append(args, "--branch", ref)
	}
	args = append(args, g.cloneURL(repo), dest)

	cmd := exec.CommandContext(ctx, "git", args...)
	if out, err := cmd.CombinedOutput(); err != nil {
		os.RemoveAll(dest)
		return fmt.Errorf("git clone: %s: %w", out, err)
	}
	return nil
}

// RecordChange applies the patch on the run's branch and commits it.
// Creating an already-existing branch or applying an already-applied
// patch are no-ops, so a retried call after a crash converges instead of
// duplicating work.
func (g *GitCLI) RecordChange(ctx context.Context, workDir, branch string, patch domain.Patch, message string) error {
	// Switch to (or create) the run's branch
	cmd := exec.CommandContext(ctx, "git", "checkout", "-B", branch)
	cmd.Dir = workDir
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("git checkout -B %s: %s: %w", branch, out, err)
	}

	// Skip a patch that is already applied
	check := exec.CommandContext(ctx, "git", "apply", "--check", "--reverse", "-")
	check.Dir = workDir
	check.Stdin = strings.NewReader(patch.Diff)
	if check.Run() == nil {
		return nil
	}

	apply := exec.CommandContext(ctx, "git", "apply", "--whitespace=nowarn", "-")
	apply.Dir = workDir
	apply.Stdin = strings.NewReader(patch.Diff)
	if out, err := apply.CombinedOutput(); err != nil {
		return fmt.Errorf("git apply: %s: %w", out, err)
	}

	add := exec.CommandContext(ctx, "git", "add", "-A")
	add.Dir = workDir
	if out, err := add.CombinedOutput(); err != nil {
		return fmt.Errorf("git add: %s: %w", out, err)
	}

	commit := exec.CommandContext(ctx, "git", "commit", "-m", message)
	commit.Dir = workDir
	if out, err := commit.CombinedOutput(); err != nil {
		// Nothing staged means the apply was a no-op; that's fine
		if strings.Contains(string(out), "nothing to commit") {
			return nil
		}
		return fmt.Errorf("git commit: %s: %w", out, err)
	}
	return nil
}

// SubmitForReview pushes the branch and opens a review request. If one
// already exists for the branch, its URL is returned and nothing new is
// created.
func (g *GitCLI) SubmitForReview(ctx context.Context, workDir, branch, title, body string) (string, error) {
	push := exec.CommandContext(ctx, "git", "push", "--force-with-lease", "origin", branch)
	push.Dir = workDir
	if out, err := push.CombinedOutput(); err != nil {
		return "", fmt.Errorf("git push: %s: %w", out, err)
	}

	// An existing review request for this branch makes the retry a no-op
	view := exec.CommandContext(ctx, "gh", "pr", "view", branch, "--json", "url", "--jq", ".url")
	view.Dir = workDir
	if out, err := view.Output(); err == nil {
		if url := strings.TrimSpace(string(out)); url != "" {
			return url, nil
		}
	}

	bodyFile := filepath.Join(os.TempDir(), "issue-orch-pr-"+branch[strings.LastIndex(branch, "/")+1:]+".md")
	if err := os.WriteFile(bodyFile, []byte(body), 0644); err != nil {
		return "", err
	}
	defer os.Remove(bodyFile)

	create := exec.CommandContext(ctx, "gh", "pr", "create",
		"--head", branch,
		"--title", title,
		"--body-file", bodyFile)
	create.Dir = workDir
	out, err := create.Output()
	if err != nil {
		return "", fmt.Errorf("gh pr create: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}
