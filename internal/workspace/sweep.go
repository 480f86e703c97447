package workspace

import (
	"os"
	"path/filepath"
	"strings"
)

// SweepStore extends Store with the query the restart sweep needs
type SweepStore interface {
	Store
	UnreleasedRuns() ([]string, error)
}

// Sweep reconciles workspaces after a restart: terminal runs whose
// workspace was never released (a crash between transition and release)
// are released now, and orphan directories with no run record or staging
// debris are removed. Returns the run ids it released.
func (m *Manager) Sweep(store SweepStore) ([]string, error) {
	ids, err := store.UnreleasedRuns()
	if err != nil {
		return nil, err
	}

	var released []string
	for _, id := range ids {
		run, err := store.GetRun(id)
		if err != nil {
			return released, err
		}
		if run == nil || !run.Status.Terminal() {
			continue // live run, its workspace is still owned
		}
		if err := m.Release(id); err != nil {
			return released, err
		}
		released = append(released, id)
	}

	// Remove staging debris from interrupted acquires
	entries, err := os.ReadDir(m.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return released, nil
		}
		return released, err
	}
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".partial") {
			os.RemoveAll(filepath.Join(m.baseDir, entry.Name()))
		}
	}

	return released, nil
}
