package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application configuration
type Config struct {
	General       GeneralConfig       `toml:"general"`
	Roles         RolesConfig         `toml:"roles"`
	Inbox         InboxConfig         `toml:"inbox"`
	Notifications NotificationsConfig `toml:"notifications"`
	Web           WebConfig           `toml:"web"`
}

// GeneralConfig holds general settings
type GeneralConfig struct {
	WorkspaceDir    string `toml:"workspace_dir"`
	ArchiveDir      string `toml:"archive_dir"`
	DatabasePath    string `toml:"database_path"`
	MaxParallelRuns int    `toml:"max_parallel_runs"`
}

// RolesConfig tunes the agent roles
type RolesConfig struct {
	Model          string `toml:"model"`
	MaxIterations  int    `toml:"max_iterations"`
	CallTimeoutSec int    `toml:"call_timeout_sec"`
	MaxRetries     int    `toml:"max_retries"`
}

// InboxConfig holds issue intake settings
type InboxConfig struct {
	Dir      string `toml:"dir"`
	PollCron string `toml:"poll_cron"`
	Repo     string `toml:"repo"`
	BaseRef  string `toml:"base_ref"`
}

// NotificationsConfig holds notification settings
type NotificationsConfig struct {
	Desktop      bool   `toml:"desktop"`
	SlackWebhook string `toml:"slack_webhook"`
}

// WebConfig holds web API settings
type WebConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	home, _ := os.UserHomeDir()
	base := filepath.Join(home, ".issue-orchestrator")
	return &Config{
		General: GeneralConfig{
			WorkspaceDir:    filepath.Join(base, "workspaces"),
			ArchiveDir:      filepath.Join(base, "archive"),
			DatabasePath:    filepath.Join(base, "orchestrator.db"),
			MaxParallelRuns: 3,
		},
		Roles: RolesConfig{
			Model:          "claude-sonnet-4-20250514",
			MaxIterations:  5,
			CallTimeoutSec: 600,
			MaxRetries:     3,
		},
		Inbox: InboxConfig{
			Dir:      filepath.Join(base, "inbox"),
			PollCron: "*/5 * * * *",
			BaseRef:  "main",
		},
		Notifications: NotificationsConfig{
			Desktop: true,
		},
		Web: WebConfig{
			Port: 8080,
			Host: "127.0.0.1",
		},
	}
}

// Load reads configuration from a TOML file, falling back to defaults
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	cfg.General.WorkspaceDir = ExpandPath(cfg.General.WorkspaceDir)
	cfg.General.ArchiveDir = ExpandPath(cfg.General.ArchiveDir)
	cfg.General.DatabasePath = ExpandPath(cfg.General.DatabasePath)
	cfg.Inbox.Dir = ExpandPath(cfg.Inbox.Dir)

	return cfg, cfg.Validate()
}

// Validate rejects settings the orchestrator cannot run with
func (c *Config) Validate() error {
	if c.General.MaxParallelRuns < 1 {
		return fmt.Errorf("general.max_parallel_runs must be at least 1, got %d", c.General.MaxParallelRuns)
	}
	if c.Roles.MaxIterations < 1 {
		return fmt.Errorf("roles.max_iterations must be at least 1, got %d", c.Roles.MaxIterations)
	}
	if c.Web.Port < 1 || c.Web.Port > 65535 {
		return fmt.Errorf("web.port %d out of range", c.Web.Port)
	}
	return nil
}

// ExpandPath expands ~ to the user's home directory
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return path
}

// DefaultConfigPath returns the default config file location
func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "issue-orchestrator", "config.toml")
}
