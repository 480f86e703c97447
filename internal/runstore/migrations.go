package runstore

const schema = `
CREATE TABLE IF NOT EXISTS issues (
    id TEXT PRIMARY KEY,
    title TEXT NOT NULL,
    body TEXT,
    repo TEXT NOT NULL,
    base_ref TEXT,
    received_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS runs (
    id TEXT PRIMARY KEY,
    issue_id TEXT NOT NULL REFERENCES issues(id),
    repo TEXT NOT NULL,
    base_ref TEXT,
    branch TEXT,
    status TEXT NOT NULL DEFAULT 'created',
    current_task INTEGER DEFAULT -1,
    workspace_released BOOLEAN DEFAULT FALSE,
    cancel_requested BOOLEAN DEFAULT FALSE,
    review_url TEXT,
    error TEXT,
    started_at TIMESTAMP,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_issue_id ON runs(issue_id);

CREATE TABLE IF NOT EXISTS tasks (
    run_id TEXT NOT NULL REFERENCES runs(id),
    idx INTEGER NOT NULL,
    title TEXT NOT NULL,
    criterion TEXT NOT NULL,
    status TEXT NOT NULL DEFAULT 'pending',
    depends_on TEXT,
    iterations INTEGER DEFAULT 0,
    blocked_for TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);

CREATE TABLE IF NOT EXISTS iterations (
    run_id TEXT NOT NULL,
    task_idx INTEGER NOT NULL,
    idx INTEGER NOT NULL,
    patch TEXT,
    verdict TEXT,
    tests TEXT,
    started_at TIMESTAMP,
    PRIMARY KEY (run_id, task_idx, idx),
    FOREIGN KEY (run_id, task_idx) REFERENCES tasks(run_id, idx)
);

CREATE TABLE IF NOT EXISTS artifacts (
    id TEXT PRIMARY KEY,
    run_id TEXT NOT NULL,
    task_idx INTEGER NOT NULL,
    iteration INTEGER NOT NULL,
    kind TEXT NOT NULL,
    content TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_artifacts_run ON artifacts(run_id, task_idx);

CREATE TABLE IF NOT EXISTS checkpoints (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL,
    task_idx INTEGER NOT NULL,
    iteration_idx INTEGER NOT NULL,
    snapshot TEXT NOT NULL,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_run ON checkpoints(run_id, id);

CREATE TABLE IF NOT EXISTS logs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id TEXT NOT NULL REFERENCES runs(id),
    timestamp TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    level TEXT,
    message TEXT
);

CREATE INDEX IF NOT EXISTS idx_logs_run_id ON logs(run_id);
`
