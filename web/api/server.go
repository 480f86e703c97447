// Package api exposes run submission, status queries and a live event
// stream over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/hochfrequenz/issue-orchestrator/internal/ci"
	"github.com/hochfrequenz/issue-orchestrator/internal/domain"
	"github.com/hochfrequenz/issue-orchestrator/internal/orchestrator"
)

// Store is the read side of run persistence the API serves from
type Store interface {
	ListRuns(status domain.RunStatus) ([]*domain.Run, error)
	GetRun(id string) (*domain.Run, error)
	ListTasks(runID string) ([]*domain.Task, error)
	ListIterations(runID string, taskIdx int) ([]*domain.Iteration, error)
	ListArtifacts(runID string) ([]*domain.Artifact, error)
	ListLogs(runID string, limit int) ([]*domain.LogEntry, error)
}

// Control is the write side: submitting issues and cancelling runs
type Control interface {
	Submit(issue *domain.Issue) (string, error)
	Cancel(runID string) error
}

// Server is the HTTP API server
type Server struct {
	store   Store
	control Control
	ci      ci.Reader
	addr    string
	mux     *http.ServeMux
	sseHub  *SSEHub
	wsHub   *WSHub
}

// NewServer creates a new API server. The CI reader enriches run detail
// responses with the submitted branch's check status; nil disables that.
func NewServer(store Store, control Control, ciReader ci.Reader, addr string) *Server {
	s := &Server{
		store:   store,
		control: control,
		ci:      ciReader,
		addr:    addr,
		mux:     http.NewServeMux(),
		sseHub:  NewSSEHub(),
		wsHub:   NewWSHub(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/status", s.statusHandler())
	s.mux.HandleFunc("/api/runs", s.listRunsHandler())
	s.mux.HandleFunc("/api/runs/", s.runHandler())
	s.mux.HandleFunc("/api/issues", s.submitIssueHandler())
	s.mux.HandleFunc("/api/events", s.sseHandler())
	s.mux.HandleFunc("/api/ws", s.wsHandler())
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go s.wsHub.Run()
	return http.ListenAndServe(s.addr, s.mux)
}

// Handler exposes the mux for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.mux
}

// EventSink returns an orchestrator sink that fans events out to all
// connected SSE and websocket clients
func (s *Server) EventSink() orchestrator.Sink {
	return func(ev orchestrator.Event) {
		s.sseHub.Broadcast(SSEEvent{Type: string(ev.Type), Data: ev})
		s.wsHub.Broadcast(ev)
	}
}

func writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
