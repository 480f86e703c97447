// Package workspace allocates isolated working copies. One workspace per
// run, for the run's whole lifetime; no two runs ever share one.
package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// Workspace is an opaque handle to a run's working copy and scratch
// space. Components receive the handle, never raw paths assembled
// elsewhere.
type Workspace struct {
	runID   string
	dir     string
	scratch string
}

// RunID returns the owning run's id
func (w *Workspace) RunID() string { return w.runID }

// WorkDir returns the working copy directory
func (w *Workspace) WorkDir() string { return w.dir }

// ScratchDir returns the scratch directory for generated reports
func (w *Workspace) ScratchDir() string { return w.scratch }

// Store is the subset of run persistence the manager needs
type Store interface {
	GetRun(id string) (*domain.Run, error)
	MarkWorkspaceReleased(id string) error
}

// Cloner establishes a working copy of a repository at a ref
type Cloner interface {
	CloneWorkingCopy(ctx context.Context, repo, ref, dest string) error
}

// Manager allocates and releases workspaces keyed by run id
type Manager struct {
	baseDir    string
	archiveDir string
	store      Store
	cloner     Cloner

	mu     sync.Mutex
	active map[string]*Workspace
}

// NewManager creates a workspace manager rooted at baseDir
func NewManager(baseDir, archiveDir string, store Store, cloner Cloner) *Manager {
	return &Manager{
		baseDir:    baseDir,
		archiveDir: archiveDir,
		store:      store,
		cloner:     cloner,
		active:     make(map[string]*Workspace),
	}
}

// Acquire creates the run's workspace, or returns the existing one if it
// was already acquired (including across a restart, when the directory
// survives on disk). Clone failure is fatal and leaves no partial
// directory behind.
func (m *Manager) Acquire(ctx context.Context, run *domain.Run) (*Workspace, error) {
	m.mu.Lock()
	if ws, ok := m.active[run.ID]; ok {
		m.mu.Unlock()
		return ws, nil
	}
	m.mu.Unlock()

	dir := filepath.Join(m.baseDir, run.ID)
	scratch := filepath.Join(dir, ".scratch")

	if _, err := os.Stat(filepath.Join(dir, ".ready")); err == nil {
		// Directory survived a restart; reuse it
		ws := &Workspace{runID: run.ID, dir: dir, scratch: scratch}
		m.mu.Lock()
		m.active[run.ID] = ws
		m.mu.Unlock()
		return ws, nil
	}

	if err := os.MkdirAll(m.baseDir, 0755); err != nil {
		return nil, &domain.WorkspaceError{RunID: run.ID, Op: "create base dir", Err: err}
	}

	// Clone into a staging dir, then rename. The rename is the commit: a
	// crash mid-clone leaves only staging debris the sweep discards.
	staging := dir + ".partial"
	os.RemoveAll(staging)
	if err := m.cloner.CloneWorkingCopy(ctx, run.Repo, run.BaseRef, staging); err != nil {
		os.RemoveAll(staging)
		return nil, &domain.WorkspaceError{RunID: run.ID, Op: "clone working copy", Err: err}
	}
	if err := os.MkdirAll(filepath.Join(staging, ".scratch"), 0755); err != nil {
		os.RemoveAll(staging)
		return nil, &domain.WorkspaceError{RunID: run.ID, Op: "create scratch dir", Err: err}
	}
	if err := os.WriteFile(filepath.Join(staging, ".ready"), []byte(run.ID+"\n"), 0644); err != nil {
		os.RemoveAll(staging)
		return nil, &domain.WorkspaceError{RunID: run.ID, Op: "mark ready", Err: err}
	}
	if err := os.Rename(staging, dir); err != nil {
		os.RemoveAll(staging)
		return nil, &domain.WorkspaceError{RunID: run.ID, Op: "commit working copy", Err: err}
	}

	ws := &Workspace{runID: run.ID, dir: dir, scratch: scratch}
	m.mu.Lock()
	m.active[run.ID] = ws
	m.mu.Unlock()
	return ws, nil
}

// Release archives the run's scratch space, deletes the working copy and
// records the release. Safe to call more than once.
func (m *Manager) Release(runID string) error {
	m.mu.Lock()
	delete(m.active, runID)
	m.mu.Unlock()

	dir := filepath.Join(m.baseDir, runID)
	if _, err := os.Stat(dir); err == nil {
		if err := m.archiveScratch(runID, filepath.Join(dir, ".scratch")); err != nil {
			return &domain.WorkspaceError{RunID: runID, Op: "archive scratch", Err: err}
		}
		if err := os.RemoveAll(dir); err != nil {
			return &domain.WorkspaceError{RunID: runID, Op: "remove working copy", Err: err}
		}
	}
	// Staging debris from an interrupted acquire
	os.RemoveAll(dir + ".partial")

	return m.store.MarkWorkspaceReleased(runID)
}

// archiveScratch moves generated reports out of a workspace before teardown
func (m *Manager) archiveScratch(runID, scratch string) error {
	entries, err := os.ReadDir(scratch)
	if err != nil || len(entries) == 0 {
		return nil // nothing to archive
	}

	dest := filepath.Join(m.archiveDir, runID)
	if err := os.MkdirAll(dest, 0755); err != nil {
		return err
	}
	for _, entry := range entries {
		src := filepath.Join(scratch, entry.Name())
		if err := os.Rename(src, filepath.Join(dest, entry.Name())); err != nil {
			return fmt.Errorf("archiving %s: %w", entry.Name(), err)
		}
	}
	return nil
}
