package server

import (
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ayusman/retarget/internal/animator"
	"github.com/ayusman/retarget/internal/session"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

const writeTimeout = 2 * time.Second

// RotationsHandler streams the solved results of a session over WebSocket,
// one JSON message per tick.
type RotationsHandler struct {
	registry *session.Registry
}

// NewRotationsHandler creates a new RotationsHandler.
func NewRotationsHandler(reg *session.Registry) *RotationsHandler {
	return &RotationsHandler{registry: reg}
}

// rotationsMessage is the JSON pushed to clients.
type rotationsMessage struct {
	animator.Result
	Timestamp int64 `json:"timestamp"`
}

// ServeHTTP handles WebSocket upgrade requests on /api/sessions/{id}/ws.
func (h *RotationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	id := sessionID(r.URL.Path, "ws")
	l, err := h.registry.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("websocket upgrade error: %v", err)
		return
	}
	defer conn.Close()

	results, cancel := l.Subscribe()
	defer cancel()

	// Detect client disconnects by reading until error.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			return
		case res, ok := <-results:
			if !ok {
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"),
					time.Now().Add(writeTimeout))
				return
			}
			msg := rotationsMessage{Result: res, Timestamp: res.Timestamp.UnixMilli()}
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		}
	}
}
