package main

import (
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/config"
	"github.com/hochfrequenz/issue-orchestrator/internal/githost"
	"github.com/hochfrequenz/issue-orchestrator/internal/llm"
	"github.com/hochfrequenz/issue-orchestrator/internal/orchestrator"
	"github.com/hochfrequenz/issue-orchestrator/internal/prompts"
	"github.com/hochfrequenz/issue-orchestrator/internal/roles"
	"github.com/hochfrequenz/issue-orchestrator/internal/runstore"
	"github.com/hochfrequenz/issue-orchestrator/internal/workspace"
)

// app bundles the wired components every command builds on
type app struct {
	cfg        *config.Config
	store      *runstore.Store
	workspaces *workspace.Manager
	host       *githost.GitCLI
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = config.DefaultConfigPath()
	}
	return config.Load(path)
}

func newApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	store, err := runstore.New(cfg.General.DatabasePath)
	if err != nil {
		return nil, err
	}

	host := githost.NewGitCLI()
	return &app{
		cfg:        cfg,
		store:      store,
		workspaces: workspace.NewManager(cfg.General.WorkspaceDir, cfg.General.ArchiveDir, store, host),
		host:       host,
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

// orchestrator builds the run state machine with LLM-backed roles
func (a *app) orchestrator(events orchestrator.Sink) *orchestrator.Orchestrator {
	factory := &llmFactory{
		backend: llm.NewCLIBackend(),
		loader:  prompts.NewLoader(),
		model:   a.cfg.Roles.Model,
	}
	cfg := orchestrator.Config{
		MaxIterations:  a.cfg.Roles.MaxIterations,
		CallTimeout:    time.Duration(a.cfg.Roles.CallTimeoutSec) * time.Second,
		MaxRetries:     a.cfg.Roles.MaxRetries,
		RetryBaseDelay: 2 * time.Second,
	}
	return orchestrator.New(a.store, a.workspaces, a.host, factory, cfg, events)
}

// llmFactory binds LLM-backed roles to workspaces
type llmFactory struct {
	backend llm.Backend
	loader  *prompts.Loader
	model   string
}

func (f *llmFactory) Planner() roles.Planner {
	return roles.NewLLMPlanner(f.backend, f.loader, f.model)
}

func (f *llmFactory) ForWorkspace(ws *workspace.Workspace) orchestrator.RoleSet {
	wd := ws.WorkDir()
	return orchestrator.RoleSet{
		Implementer: roles.NewLLMImplementer(f.backend, f.loader, f.model, wd),
		Reviewer:    roles.NewLLMReviewer(f.backend, f.loader, f.model, wd),
		Validators: &roles.Validators{
			Checker: roles.NewLLMRequirementChecker(f.backend, f.loader, f.model, wd),
			Tests:   roles.NewLLMTestRunner(f.backend, f.loader, f.model, wd),
		},
	}
}
