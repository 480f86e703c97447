package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
)

// RunResponse is the API response for a run
type RunResponse struct {
	ID          string  `json:"id"`
	IssueID     string  `json:"issue_id"`
	Repo        string  `json:"repo"`
	Branch      string  `json:"branch"`
	Status      string  `json:"status"`
	CurrentTask int     `json:"current_task"`
	ReviewURL   string  `json:"review_url,omitempty"`
	Error       string  `json:"error,omitempty"`
	StartedAt   *string `json:"started_at,omitempty"`
	FinishedAt  *string `json:"finished_at,omitempty"`
}

// TaskResponse is the API response for a task
type TaskResponse struct {
	Index      int    `json:"index"`
	Title      string `json:"title"`
	Criterion  string `json:"criterion"`
	Status     string `json:"status"`
	Iterations int    `json:"iterations"`
	BlockedFor string `json:"blocked_for,omitempty"`
	DependsOn  []int  `json:"depends_on,omitempty"`
}

// RunDetailResponse is the API response for one run with its tasks
type RunDetailResponse struct {
	RunResponse
	CIStatus string         `json:"ci_status,omitempty"`
	Tasks    []TaskResponse `json:"tasks"`
}

// ArtifactResponse is the API response for one stored artifact
type ArtifactResponse struct {
	ID        string `json:"id"`
	TaskIndex int    `json:"task_index"`
	Iteration int    `json:"iteration"`
	Kind      string `json:"kind"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// StatusResponse is the API response for overall status
type StatusResponse struct {
	Total              int `json:"total"`
	Active             int `json:"active"`
	AwaitingReview     int `json:"awaiting_review"`
	NeedsClarification int `json:"needs_clarification"`
	Completed          int `json:"completed"`
	Failed             int `json:"failed"`
	Cancelled          int `json:"cancelled"`
}

func runToResponse(r *domain.Run) RunResponse {
	resp := RunResponse{
		ID:          r.ID,
		IssueID:     r.IssueID,
		Repo:        r.Repo,
		Branch:      r.Branch,
		Status:      string(r.Status),
		CurrentTask: r.CurrentTask,
		ReviewURL:   r.ReviewURL,
		Error:       r.Error,
	}
	if r.StartedAt != nil {
		t := r.StartedAt.Format(time.RFC3339)
		resp.StartedAt = &t
	}
	if r.FinishedAt != nil {
		t := r.FinishedAt.Format(time.RFC3339)
		resp.FinishedAt = &t
	}
	return resp
}

func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		Index:      t.Index,
		Title:      t.Title,
		Criterion:  t.Criterion,
		Status:     string(t.Status),
		Iterations: t.Iterations,
		BlockedFor: t.BlockedFor,
		DependsOn:  t.DependsOn,
	}
}

func (s *Server) statusHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		runs, err := s.store.ListRuns("")
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		var status StatusResponse
		status.Total = len(runs)
		for _, run := range runs {
			switch run.Status {
			case domain.RunCompleted:
				status.Completed++
			case domain.RunFailed:
				status.Failed++
			case domain.RunCancelled:
				status.Cancelled++
			case domain.RunAwaitingReview:
				status.AwaitingReview++
			case domain.RunNeedsClarification:
				status.NeedsClarification++
			default:
				status.Active++
			}
		}

		writeJSON(w, status)
	}
}

func (s *Server) listRunsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		runs, err := s.store.ListRuns(domain.RunStatus(r.URL.Query().Get("status")))
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		resp := make([]RunResponse, len(runs))
		for i, run := range runs {
			resp[i] = runToResponse(run)
		}
		writeJSON(w, resp)
	}
}

// runHandler routes /api/runs/{id} and /api/runs/{id}/cancel
func (s *Server) runHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rest := strings.TrimPrefix(r.URL.Path, "/api/runs/")
		parts := strings.Split(rest, "/")
		id := parts[0]
		if id == "" {
			writeError(w, http.StatusNotFound, "missing run id")
			return
		}

		if len(parts) == 2 && parts[1] == "cancel" {
			s.cancelRun(w, r, id)
			return
		}
		if len(parts) == 2 && parts[1] == "logs" {
			s.runLogs(w, r, id)
			return
		}
		if len(parts) == 2 && parts[1] == "artifacts" {
			s.runArtifacts(w, r, id)
			return
		}
		if len(parts) != 1 {
			writeError(w, http.StatusNotFound, "not found")
			return
		}

		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		run, err := s.store.GetRun(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		if run == nil {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}

		tasks, err := s.store.ListTasks(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}

		detail := RunDetailResponse{RunResponse: runToResponse(run)}
		for _, t := range tasks {
			detail.Tasks = append(detail.Tasks, taskToResponse(t))
		}
		// Once a change set is out for review its branch has CI results
		// worth surfacing; failures here degrade to an absent field
		if s.ci != nil && run.ReviewURL != "" {
			if status, err := s.ci.Status(r.Context(), run.Repo, run.Branch); err == nil {
				detail.CIStatus = string(status)
			}
		}
		writeJSON(w, detail)
	}
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if err := s.control.Cancel(id); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, map[string]string{"status": "cancellation requested"})
}

func (s *Server) runLogs(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	logs, err := s.store.ListLogs(id, 200)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, logs)
}

func (s *Server) runArtifacts(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	artifacts, err := s.store.ListArtifacts(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := make([]ArtifactResponse, len(artifacts))
	for i, a := range artifacts {
		resp[i] = ArtifactResponse{
			ID:        a.ID,
			TaskIndex: a.TaskIndex,
			Iteration: a.Iteration,
			Kind:      a.Kind,
			Content:   a.Content,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		}
	}
	writeJSON(w, resp)
}

// submitIssueRequest is the POST body for /api/issues
type submitIssueRequest struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Body    string `json:"body"`
	Repo    string `json:"repo"`
	BaseRef string `json:"base_ref"`
}

func (s *Server) submitIssueHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}

		var req submitIssueRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		if req.BaseRef == "" {
			req.BaseRef = "main"
		}

		issue := &domain.Issue{
			ID:         req.ID,
			Title:      req.Title,
			Body:       req.Body,
			Repo:       req.Repo,
			BaseRef:    req.BaseRef,
			ReceivedAt: time.Now(),
		}

		runID, err := s.control.Submit(issue)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeJSON(w, map[string]string{"run_id": runID})
	}
}
