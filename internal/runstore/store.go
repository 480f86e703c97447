package runstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	_ "modernc.org/sqlite"
)

// Store provides SQLite-backed run persistence
type Store struct {
	db *sql.DB
}

// New creates a new Store with the given database path
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, err
	}

	// Run migrations
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// UpsertIssue inserts an issue, keeping the first ingested version
func (s *Store) UpsertIssue(issue *domain.Issue) error {
	_, err := s.db.Exec(`
		INSERT INTO issues (id, title, body, repo, base_ref, received_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, issue.ID, issue.Title, issue.Body, issue.Repo, issue.BaseRef, issue.ReceivedAt)
	return err
}

// GetIssue retrieves an issue by ID
func (s *Store) GetIssue(id string) (*domain.Issue, error) {
	var issue domain.Issue
	err := s.db.QueryRow(`
		SELECT id, title, body, repo, base_ref, received_at FROM issues WHERE id = ?
	`, id).Scan(&issue.ID, &issue.Title, &issue.Body, &issue.Repo, &issue.BaseRef, &issue.ReceivedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &issue, nil
}

// CreateRun inserts a new run
func (s *Store) CreateRun(run *domain.Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, issue_id, repo, base_ref, branch, status, current_task, workspace_released, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.IssueID, run.Repo, run.BaseRef, run.Branch, string(run.Status), run.CurrentTask, run.WorkspaceReleased, run.StartedAt)
	return err
}

const runColumns = `id, issue_id, repo, base_ref, branch, status, current_task, workspace_released, cancel_requested, review_url, error, started_at, finished_at`

func scanRun(row interface{ Scan(...any) error }) (*domain.Run, error) {
	var run domain.Run
	var status string
	var branch, reviewURL, errMsg sql.NullString
	err := row.Scan(&run.ID, &run.IssueID, &run.Repo, &run.BaseRef, &branch, &status,
		&run.CurrentTask, &run.WorkspaceReleased, &run.CancelRequested, &reviewURL, &errMsg, &run.StartedAt, &run.FinishedAt)
	if err != nil {
		return nil, err
	}
	run.Status = domain.RunStatus(status)
	run.Branch = branch.String
	run.ReviewURL = reviewURL.String
	run.Error = errMsg.String
	return &run, nil
}

// GetRun retrieves a run by ID
func (s *Store) GetRun(id string) (*domain.Run, error) {
	run, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// ListRuns returns all runs, newest first. If status is non-empty, only
// runs in that status are returned.
func (s *Store) ListRuns(status domain.RunStatus) ([]*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY started_at DESC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []*domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// UpdateRunStatus updates a run's status and error message. Terminal
// statuses also set finished_at.
func (s *Store) UpdateRunStatus(id string, status domain.RunStatus, errMsg string) error {
	if status.Terminal() {
		_, err := s.db.Exec(`UPDATE runs SET status = ?, error = ?, finished_at = ? WHERE id = ?`,
			string(status), errMsg, time.Now(), id)
		return err
	}
	_, err := s.db.Exec(`UPDATE runs SET status = ?, error = ? WHERE id = ?`,
		string(status), errMsg, id)
	return err
}

// SetRunCurrentTask records which task the run is working on
func (s *Store) SetRunCurrentTask(id string, idx int) error {
	_, err := s.db.Exec(`UPDATE runs SET current_task = ? WHERE id = ?`, idx, id)
	return err
}

// SetRunReviewURL records the submitted change-set URL
func (s *Store) SetRunReviewURL(id, url string) error {
	_, err := s.db.Exec(`UPDATE runs SET review_url = ? WHERE id = ?`, url, id)
	return err
}

// RequestCancel flags a run for cooperative cancellation. The orchestrator
// honors the flag at its next checkpoint boundary.
func (s *Store) RequestCancel(id string) error {
	_, err := s.db.Exec(`UPDATE runs SET cancel_requested = TRUE WHERE id = ?`, id)
	return err
}

// ActiveRunForIssue returns the non-terminal run for an issue, if any
func (s *Store) ActiveRunForIssue(issueID string) (*domain.Run, error) {
	run, err := scanRun(s.db.QueryRow(`
		SELECT `+runColumns+` FROM runs
		WHERE issue_id = ? AND status NOT IN ('completed', 'failed', 'cancelled')
		ORDER BY started_at DESC LIMIT 1
	`, issueID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return run, err
}

// MarkWorkspaceReleased records that the run's workspace has been torn down
func (s *Store) MarkWorkspaceReleased(id string) error {
	_, err := s.db.Exec(`UPDATE runs SET workspace_released = TRUE WHERE id = ?`, id)
	return err
}

// UnreleasedRuns returns IDs of runs whose workspace was never released.
// The restart sweep uses this to clean up after crashes.
func (s *Store) UnreleasedRuns() ([]string, error) {
	rows, err := s.db.Query(`SELECT id FROM runs WHERE workspace_released = FALSE`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertTasks persists the planner's ordered task list for a run
func (s *Store) InsertTasks(tasks []*domain.Task) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, task := range tasks {
		depsJSON, err := json.Marshal(task.DependsOn)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`
			INSERT INTO tasks (run_id, idx, title, criterion, status, depends_on, iterations, blocked_for, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(run_id, idx) DO NOTHING
		`, task.RunID, task.Index, task.Title, task.Criterion, string(task.Status),
			string(depsJSON), task.Iterations, task.BlockedFor, task.CreatedAt, task.UpdatedAt)
		if err != nil {
			return err
		}
	}
	return tx.Commit()
}

const taskColumns = `run_id, idx, title, criterion, status, depends_on, iterations, blocked_for, created_at, updated_at`

func scanTask(row interface{ Scan(...any) error }) (*domain.Task, error) {
	var task domain.Task
	var status string
	var depsJSON, blockedFor sql.NullString
	err := row.Scan(&task.RunID, &task.Index, &task.Title, &task.Criterion, &status,
		&depsJSON, &task.Iterations, &blockedFor, &task.CreatedAt, &task.UpdatedAt)
	if err != nil {
		return nil, err
	}
	task.Status = domain.TaskStatus(status)
	task.BlockedFor = blockedFor.String
	if depsJSON.String != "" {
		if err := json.Unmarshal([]byte(depsJSON.String), &task.DependsOn); err != nil {
			return nil, fmt.Errorf("parsing depends_on: %w", err)
		}
	}
	return &task, nil
}

// GetTask retrieves one task of a run by index
func (s *Store) GetTask(runID string, idx int) (*domain.Task, error) {
	task, err := scanTask(s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE run_id = ? AND idx = ?`, runID, idx))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return task, err
}

// ListTasks returns a run's tasks in plan order
func (s *Store) ListTasks(runID string) ([]*domain.Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks WHERE run_id = ? ORDER BY idx`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	return tasks, rows.Err()
}

// UpdateTaskStatus updates a task's status, iteration count and block reason
func (s *Store) UpdateTaskStatus(runID string, idx int, status domain.TaskStatus, iterations int, blockedFor string) error {
	_, err := s.db.Exec(`
		UPDATE tasks SET status = ?, iterations = ?, blocked_for = ?, updated_at = ?
		WHERE run_id = ? AND idx = ?
	`, string(status), iterations, blockedFor, time.Now(), runID, idx)
	return err
}

// AppendIteration records one propose/review cycle. Iterations are
// append-only; a duplicate (run, task, idx) insert is ignored so a
// re-executed cycle after crash recovery is a no-op.
func (s *Store) AppendIteration(it *domain.Iteration) error {
	patchJSON, err := json.Marshal(it.Patch)
	if err != nil {
		return err
	}
	verdictJSON, err := json.Marshal(it.Verdict)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(`
		INSERT INTO iterations (run_id, task_idx, idx, patch, verdict, tests, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, task_idx, idx) DO NOTHING
	`, it.RunID, it.TaskIndex, it.Index, string(patchJSON), string(verdictJSON), string(it.Tests), it.StartedAt)
	return err
}

// ListIterations returns a task's iterations in order
func (s *Store) ListIterations(runID string, taskIdx int) ([]*domain.Iteration, error) {
	rows, err := s.db.Query(`
		SELECT run_id, task_idx, idx, patch, verdict, tests, started_at
		FROM iterations WHERE run_id = ? AND task_idx = ? ORDER BY idx
	`, runID, taskIdx)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var its []*domain.Iteration
	for rows.Next() {
		var it domain.Iteration
		var patchJSON, verdictJSON, tests sql.NullString
		if err := rows.Scan(&it.RunID, &it.TaskIndex, &it.Index, &patchJSON, &verdictJSON, &tests, &it.StartedAt); err != nil {
			return nil, err
		}
		if patchJSON.String != "" {
			if err := json.Unmarshal([]byte(patchJSON.String), &it.Patch); err != nil {
				return nil, err
			}
		}
		if verdictJSON.String != "" {
			if err := json.Unmarshal([]byte(verdictJSON.String), &it.Verdict); err != nil {
				return nil, err
			}
		}
		it.Tests = domain.TestOutcome(tests.String)
		its = append(its, &it)
	}
	return its, rows.Err()
}

// AppendArtifact records an artifact. Artifacts are never updated.
func (s *Store) AppendArtifact(a *domain.Artifact) error {
	_, err := s.db.Exec(`
		INSERT INTO artifacts (id, run_id, task_idx, iteration, kind, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, a.ID, a.RunID, a.TaskIndex, a.Iteration, a.Kind, a.Content, a.CreatedAt)
	return err
}

// LatestArtifact returns the newest artifact of the given kind for a task
func (s *Store) LatestArtifact(runID string, taskIdx int, kind string) (*domain.Artifact, error) {
	var a domain.Artifact
	err := s.db.QueryRow(`
		SELECT id, run_id, task_idx, iteration, kind, content, created_at
		FROM artifacts WHERE run_id = ? AND task_idx = ? AND kind = ?
		ORDER BY iteration DESC LIMIT 1
	`, runID, taskIdx, kind).Scan(&a.ID, &a.RunID, &a.TaskIndex, &a.Iteration, &a.Kind, &a.Content, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListArtifacts returns all artifacts of a run in creation order
func (s *Store) ListArtifacts(runID string) ([]*domain.Artifact, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, task_idx, iteration, kind, content, created_at
		FROM artifacts WHERE run_id = ? ORDER BY task_idx, iteration
	`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []*domain.Artifact
	for rows.Next() {
		var a domain.Artifact
		if err := rows.Scan(&a.ID, &a.RunID, &a.TaskIndex, &a.Iteration, &a.Kind, &a.Content, &a.CreatedAt); err != nil {
			return nil, err
		}
		artifacts = append(artifacts, &a)
	}
	return artifacts, rows.Err()
}

// AppendLog records a run-scoped log line
func (s *Store) AppendLog(runID, level, message string) error {
	_, err := s.db.Exec(`INSERT INTO logs (run_id, timestamp, level, message) VALUES (?, ?, ?, ?)`,
		runID, time.Now(), level, message)
	return err
}

// ListLogs returns the newest limit log lines for a run, oldest first
func (s *Store) ListLogs(runID string, limit int) ([]*domain.LogEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, run_id, timestamp, level, message FROM (
			SELECT id, run_id, timestamp, level, message FROM logs
			WHERE run_id = ? ORDER BY id DESC LIMIT ?
		) ORDER BY id
	`, runID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*domain.LogEntry
	for rows.Next() {
		var e domain.LogEntry
		if err := rows.Scan(&e.ID, &e.RunID, &e.Timestamp, &e.Level, &e.Message); err != nil {
			return nil, err
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}
