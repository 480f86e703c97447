package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// SSEEvent is one server-sent event on the /api/events stream
type SSEEvent struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SSEHub fans orchestrator events out to subscribed HTTP streams. A
// subscriber that cannot keep up is closed rather than allowed to stall
// the broadcast.
type SSEHub struct {
	mu      sync.Mutex
	streams map[chan SSEEvent]struct{}
}

func NewSSEHub() *SSEHub {
	return &SSEHub{streams: make(map[chan SSEEvent]struct{})}
}

func (h *SSEHub) subscribe() chan SSEEvent {
	ch := make(chan SSEEvent, 16)
	h.mu.Lock()
	h.streams[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *SSEHub) drop(ch chan SSEEvent) {
	h.mu.Lock()
	if _, ok := h.streams[ch]; ok {
		delete(h.streams, ch)
		close(ch)
	}
	h.mu.Unlock()
}

// Broadcast delivers an event to every live subscriber
func (h *SSEHub) Broadcast(event SSEEvent) {
	h.mu.Lock()
	for ch := range h.streams {
		select {
		case ch <- event:
		default:
			delete(h.streams, ch)
			close(ch)
		}
	}
	h.mu.Unlock()
}

func (s *Server) sseHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "streaming not supported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		stream := s.sseHub.subscribe()
		defer s.sseHub.drop(stream)

		for {
			select {
			case <-r.Context().Done():
				return
			case event, ok := <-stream:
				if !ok {
					return
				}
				data, err := json.Marshal(event)
				if err != nil {
					continue
				}
				fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, data)
				flusher.Flush()
			}
		}
	}
}
