package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Default()

	if cfg.General.MaxParallelRuns != 3 {
		t.Errorf("MaxParallelRuns = %d, want 3", cfg.General.MaxParallelRuns)
	}
	if cfg.Roles.MaxIterations != 5 {
		t.Errorf("Roles.MaxIterations = %d, want 5", cfg.Roles.MaxIterations)
	}
	if cfg.Web.Port != 8080 {
		t.Errorf("Web.Port = %d, want 8080", cfg.Web.Port)
	}
	if cfg.Web.Host != "127.0.0.1" {
		t.Errorf("Web.Host = %q, want 127.0.0.1", cfg.Web.Host)
	}
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[general]
workspace_dir = "/data/workspaces"
max_parallel_runs = 5

[roles]
max_iterations = 8

[web]
port = 9000
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatal(err)
	}

	if cfg.General.WorkspaceDir != "/data/workspaces" {
		t.Errorf("WorkspaceDir = %q, want /data/workspaces", cfg.General.WorkspaceDir)
	}
	if cfg.General.MaxParallelRuns != 5 {
		t.Errorf("MaxParallelRuns = %d, want 5", cfg.General.MaxParallelRuns)
	}
	if cfg.Roles.MaxIterations != 8 {
		t.Errorf("Roles.MaxIterations = %d, want 8", cfg.Roles.MaxIterations)
	}
	if cfg.Web.Port != 9000 {
		t.Errorf("Web.Port = %d, want 9000", cfg.Web.Port)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.General.MaxParallelRuns != 3 {
		t.Errorf("MaxParallelRuns = %d, want default 3", cfg.General.MaxParallelRuns)
	}
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.toml")

	content := `
[general]
max_parallel_runs = 0
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(configPath); err == nil {
		t.Error("Load() accepted max_parallel_runs = 0")
	}
}

func TestExpandPath(t *testing.T) {
	home, _ := os.UserHomeDir()

	tests := []struct {
		input string
		want  string
	}{
		{"~/test", filepath.Join(home, "test")},
		{"/absolute/path", "/absolute/path"},
		{"relative", "relative"},
	}

	for _, tt := range tests {
		got := ExpandPath(tt.input)
		if got != tt.want {
			t.Errorf("ExpandPath(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
