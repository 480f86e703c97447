package runstore

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// Snapshot holds the state keys of the transition a checkpoint commits.
// Resume re-derives full state from the runs, tasks and iterations rows;
// the keys make each log entry meaningful on its own.
type Snapshot struct {
	RunStatus   domain.RunStatus  `json:"run_status"`
	CurrentTask int               `json:"current_task"`
	TaskStatus  domain.TaskStatus `json:"task_status,omitempty"`
	Iterations  int               `json:"iterations,omitempty"`
}

// Checkpoint is one entry of the append-only checkpoint log
type Checkpoint struct {
	ID             int
	RunID          string
	TaskIndex      int
	IterationIndex int
	Snapshot       Snapshot
	CreatedAt      time.Time
}

// AppendCheckpoint writes a checkpoint. This is the orchestrator's commit
// point: work done after the last checkpoint is re-executed on restart.
func (s *Store) AppendCheckpoint(cp *Checkpoint) error {
	snapJSON, err := json.Marshal(cp.Snapshot)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO checkpoints (run_id, task_idx, iteration_idx, snapshot, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, cp.RunID, cp.TaskIndex, cp.IterationIndex, string(snapJSON), time.Now())
	return err
}

// LatestCheckpoint returns the most recent checkpoint for a run, or nil
// if none was ever written
func (s *Store) LatestCheckpoint(runID string) (*Checkpoint, error) {
	row := s.db.QueryRow(`
		SELECT id, run_id, task_idx, iteration_idx, snapshot, created_at
		FROM checkpoints WHERE run_id = ? ORDER BY id DESC LIMIT 1
	`, runID)
	return scanCheckpoint(row)
}

// ListCheckpoints returns a run's checkpoints oldest first
func (s *Store) ListCheckpoints(runID string) ([]*Checkpoint, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, task_idx, iteration_idx, snapshot, created_at
		FROM checkpoints WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cps []*Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			return nil, err
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

func scanCheckpoint(row interface{ Scan(...any) error }) (*Checkpoint, error) {
	var cp Checkpoint
	var snapJSON string
	err := row.Scan(&cp.ID, &cp.RunID, &cp.TaskIndex, &cp.IterationIndex, &snapJSON, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(snapJSON), &cp.Snapshot); err != nil {
		return nil, err
	}
	return &cp, nil
}
