package api

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/hochfrequenz/issue-orchestrator/internal/orchestrator"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHub manages websocket connections
type WSHub struct {
	clients    map[chan orchestrator.Event]bool
	broadcast  chan orchestrator.Event
	register   chan chan orchestrator.Event
	unregister chan chan orchestrator.Event
	mu         sync.RWMutex
}

// NewWSHub creates a new websocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[chan orchestrator.Event]bool),
		broadcast:  make(chan orchestrator.Event, 64),
		register:   make(chan chan orchestrator.Event),
		unregister: make(chan chan orchestrator.Event),
	}
}

// Run starts the websocket hub
func (h *WSHub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client)
			}
			h.mu.Unlock()

		case event := <-h.broadcast:
			h.mu.RLock()
			for client := range h.clients {
				select {
				case client <- event:
				default:
					close(client)
					delete(h.clients, client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues an event for all websocket clients. Dropping on a full
// queue keeps the orchestrator from ever blocking on a reader.
func (h *WSHub) Broadcast(event orchestrator.Event) {
	select {
	case h.broadcast <- event:
	default:
	}
}

func (s *Server) wsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := make(chan orchestrator.Event, 16)
		s.wsHub.register <- client

		// Drain reads so close frames are processed
		go func() {
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					s.wsHub.unregister <- client
					return
				}
			}
		}()

		for event := range client {
			if err := conn.WriteJSON(event); err != nil {
				break
			}
		}
		conn.Close()
	}
}
