package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

type mockStore struct {
	runs      []*domain.Run
	tasks     map[string][]*domain.Task
	artifacts map[string][]*domain.Artifact
}

func (m *mockStore) ListRuns(status domain.RunStatus) ([]*domain.Run, error) {
	if status == "" {
		return m.runs, nil
	}
	var out []*domain.Run
	for _, r := range m.runs {
		if r.Status == status {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockStore) GetRun(id string) (*domain.Run, error) {
	for _, r := range m.runs {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, nil
}

func (m *mockStore) ListTasks(runID string) ([]*domain.Task, error) {
	return m.tasks[runID], nil
}

func (m *mockStore) ListIterations(runID string, taskIdx int) ([]*domain.Iteration, error) {
	return nil, nil
}

func (m *mockStore) ListArtifacts(runID string) ([]*domain.Artifact, error) {
	return m.artifacts[runID], nil
}

func (m *mockStore) ListLogs(runID string, limit int) ([]*domain.LogEntry, error) {
	return nil, nil
}

// mockCI serves a fixed status and records what it was asked about
type mockCI struct {
	status domain.CIStatus
	repos  []string
	refs   []string
}

func (m *mockCI) Status(ctx context.Context, repo, commitRef string) (domain.CIStatus, error) {
	m.repos = append(m.repos, repo)
	m.refs = append(m.refs, commitRef)
	return m.status, nil
}

type mockControl struct {
	submitted []*domain.Issue
	cancelled []string
}

func (m *mockControl) Submit(issue *domain.Issue) (string, error) {
	if err := issue.Validate(); err != nil {
		return "", err
	}
	m.submitted = append(m.submitted, issue)
	return "run-" + issue.ID, nil
}

func (m *mockControl) Cancel(runID string) error {
	m.cancelled = append(m.cancelled, runID)
	return nil
}

func testStore() *mockStore {
	return &mockStore{
		runs: []*domain.Run{
			{ID: "r1", IssueID: "1", Status: domain.RunInProgress, CurrentTask: 1},
			{ID: "r2", IssueID: "2", Repo: "acme/fetcher", Branch: "orch/r2", Status: domain.RunCompleted, ReviewURL: "https://example.test/pr/1"},
			{ID: "r3", IssueID: "3", Status: domain.RunNeedsClarification},
		},
		tasks: map[string][]*domain.Task{
			"r1": {
				{RunID: "r1", Index: 0, Title: "first", Status: domain.TaskApproved, Iterations: 2},
				{RunID: "r1", Index: 1, Title: "second", Status: domain.TaskInReview, Iterations: 1, DependsOn: []int{0}},
			},
		},
	}
}

func TestStatusHandler(t *testing.T) {
	server := NewServer(testStore(), &mockControl{}, nil, ":8080")

	req := httptest.NewRequest("GET", "/api/status", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}

	var status StatusResponse
	json.NewDecoder(w.Body).Decode(&status)

	if status.Total != 3 {
		t.Errorf("Total = %d, want 3", status.Total)
	}
	if status.Active != 1 {
		t.Errorf("Active = %d, want 1", status.Active)
	}
	if status.Completed != 1 {
		t.Errorf("Completed = %d, want 1", status.Completed)
	}
	if status.NeedsClarification != 1 {
		t.Errorf("NeedsClarification = %d, want 1", status.NeedsClarification)
	}
}

func TestListRunsHandler_FilterByStatus(t *testing.T) {
	server := NewServer(testStore(), &mockControl{}, nil, ":8080")

	req := httptest.NewRequest("GET", "/api/runs?status=completed", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	var runs []RunResponse
	json.NewDecoder(w.Body).Decode(&runs)

	if len(runs) != 1 {
		t.Fatalf("Run count = %d, want 1", len(runs))
	}
	if runs[0].ID != "r2" {
		t.Errorf("Run ID = %q, want r2", runs[0].ID)
	}
}

func TestRunDetailHandler(t *testing.T) {
	server := NewServer(testStore(), &mockControl{}, nil, ":8080")

	req := httptest.NewRequest("GET", "/api/runs/r1", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}

	var detail RunDetailResponse
	json.NewDecoder(w.Body).Decode(&detail)

	if detail.Status != string(domain.RunInProgress) {
		t.Errorf("Status = %q, want in_progress", detail.Status)
	}
	if detail.CurrentTask != 1 {
		t.Errorf("CurrentTask = %d, want 1", detail.CurrentTask)
	}
	if len(detail.Tasks) != 2 {
		t.Fatalf("Task count = %d, want 2", len(detail.Tasks))
	}
	if detail.Tasks[1].Iterations != 1 {
		t.Errorf("task 1 iterations = %d, want 1", detail.Tasks[1].Iterations)
	}
}

func TestRunDetailHandler_NotFound(t *testing.T) {
	server := NewServer(testStore(), &mockControl{}, nil, ":8080")

	req := httptest.NewRequest("GET", "/api/runs/nope", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404", w.Code)
	}
}

func TestCancelRunHandler(t *testing.T) {
	control := &mockControl{}
	server := NewServer(testStore(), control, nil, ":8080")

	req := httptest.NewRequest("POST", "/api/runs/r1/cancel", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}
	if len(control.cancelled) != 1 || control.cancelled[0] != "r1" {
		t.Errorf("cancelled = %v, want [r1]", control.cancelled)
	}
}

func TestSubmitIssueHandler(t *testing.T) {
	control := &mockControl{}
	server := NewServer(testStore(), control, nil, ":8080")

	body := `{"id": "42", "title": "add retries", "body": "x", "repo": "acme/fetcher"}`
	req := httptest.NewRequest("POST", "/api/issues", strings.NewReader(body))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200 (body: %s)", w.Code, w.Body.String())
	}

	var resp map[string]string
	json.NewDecoder(w.Body).Decode(&resp)
	if resp["run_id"] != "run-42" {
		t.Errorf("run_id = %q, want run-42", resp["run_id"])
	}
	if len(control.submitted) != 1 {
		t.Fatalf("submitted %d issues, want 1", len(control.submitted))
	}
	if control.submitted[0].BaseRef != "main" {
		t.Errorf("BaseRef = %q, want default main", control.submitted[0].BaseRef)
	}
}

func TestSubmitIssueHandler_RejectsInvalid(t *testing.T) {
	server := NewServer(testStore(), &mockControl{}, nil, ":8080")

	body := `{"id": "43"}`
	req := httptest.NewRequest("POST", "/api/issues", strings.NewReader(body))
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", w.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	server := NewServer(testStore(), &mockControl{}, nil, ":8080")

	req := httptest.NewRequest("DELETE", "/api/runs", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("Status = %d, want 405", w.Code)
	}
}

func TestRunDetailHandler_CIStatus(t *testing.T) {
	reader := &mockCI{status: domain.CIPass}
	server := NewServer(testStore(), &mockControl{}, reader, ":8080")

	// r2 has a submitted change set, so its branch status is surfaced
	req := httptest.NewRequest("GET", "/api/runs/r2", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	var detail RunDetailResponse
	json.NewDecoder(w.Body).Decode(&detail)

	if detail.CIStatus != string(domain.CIPass) {
		t.Errorf("CIStatus = %q, want %q", detail.CIStatus, domain.CIPass)
	}
	if len(reader.repos) != 1 || reader.repos[0] != "acme/fetcher" || reader.refs[0] != "orch/r2" {
		t.Errorf("CI queried with repos %v refs %v, want acme/fetcher orch/r2", reader.repos, reader.refs)
	}

	// r1 has nothing out for review yet, so CI is never consulted
	req = httptest.NewRequest("GET", "/api/runs/r1", nil)
	w = httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	detail = RunDetailResponse{}
	json.NewDecoder(w.Body).Decode(&detail)

	if detail.CIStatus != "" {
		t.Errorf("CIStatus = %q, want empty before submission", detail.CIStatus)
	}
	if len(reader.repos) != 1 {
		t.Errorf("CI queried %d times, want 1", len(reader.repos))
	}
}

func TestRunArtifactsHandler(t *testing.T) {
	store := testStore()
	store.artifacts = map[string][]*domain.Artifact{
		"r1": {
			{ID: "r1/0/1/patch", RunID: "r1", TaskIndex: 0, Iteration: 1, Kind: "patch", Content: "+x", CreatedAt: time.Now()},
			{ID: "r1/0/2/patch", RunID: "r1", TaskIndex: 0, Iteration: 2, Kind: "patch", Content: "+y", CreatedAt: time.Now()},
		},
	}
	server := NewServer(store, &mockControl{}, nil, ":8080")

	req := httptest.NewRequest("GET", "/api/runs/r1/artifacts", nil)
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("Status = %d, want 200", w.Code)
	}

	var artifacts []ArtifactResponse
	json.NewDecoder(w.Body).Decode(&artifacts)

	if len(artifacts) != 2 {
		t.Fatalf("Artifact count = %d, want 2", len(artifacts))
	}
	if artifacts[1].ID != "r1/0/2/patch" || artifacts[1].Iteration != 2 {
		t.Errorf("artifact = %+v, want r1/0/2/patch iteration 2", artifacts[1])
	}
}

func TestSSEHub_DropsSubscriberThatStopsReading(t *testing.T) {
	hub := NewSSEHub()
	stream := hub.subscribe()

	// Fill the buffer and push one past it without draining
	for i := 0; i <= cap(stream); i++ {
		hub.Broadcast(SSEEvent{Type: "task_state_changed"})
	}

	received := 0
	for range stream {
		received++
	}
	if received != cap(stream) {
		t.Errorf("received %d events, want %d buffered before the drop", received, cap(stream))
	}

	// The hub keeps working for later subscribers
	next := hub.subscribe()
	hub.Broadcast(SSEEvent{Type: "run_state_changed"})
	if ev := <-next; ev.Type != "run_state_changed" {
		t.Errorf("event type = %q, want run_state_changed", ev.Type)
	}
}
