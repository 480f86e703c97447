package githost

import (
	"strings"
	"testing"
)

func TestBranchName_Deterministic(t *testing.T) {
	a := BranchName("run-123")
	b := BranchName("run-123")
	if a != b {
		t.Errorf("BranchName not deterministic: %q vs %q", a, b)
	}
	if !strings.HasPrefix(a, "orch/run-123-") {
		t.Errorf("BranchName = %q, want orch/run-123-<suffix>", a)
	}
}

func TestBranchName_DistinctRuns(t *testing.T) {
	if BranchName("run-1") == BranchName("run-2") {
		t.Error("distinct runs must get distinct branches")
	}
}

func TestGitCLI_CloneURL(t *testing.T) {
	g := NewGitCLI()
	if got := g.cloneURL("acme/api"); got != "https://github.com/acme/api.git" {
		t.Errorf("cloneURL = %q", got)
	}

	g.HostURL = "https://git.example.com"
	if got := g.cloneURL("acme/api"); got != "https://git.example.com/acme/api.git" {
		t.Errorf("cloneURL = %q", got)
	}
}
