// Package server provides the HTTP server for the retargeting service.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/ayusman/retarget/internal/server/api"
	"github.com/ayusman/retarget/internal/session"
	"github.com/ayusman/retarget/internal/store"
)

// Config holds the server configuration.
type Config struct {
	StaticDir string
	Store     *store.Store
	Registry  *session.Registry
	// DebugFPS is the MJPEG debug stream rate. Zero selects 15.
	DebugFPS int
}

// Server represents the HTTP server for the retargeting service.
type Server struct {
	config Config
	mux    *http.ServeMux
	start  time.Time
}

// New creates a new Server with the given configuration.
func New(config Config) *Server {
	if config.DebugFPS <= 0 {
		config.DebugFPS = 15
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		start:  time.Now(),
	}
	s.setupRoutes()
	return s
}

// setupRoutes configures all HTTP routes for the server.
func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.Store != nil {
		rigHandler := api.NewRigHandler(s.config.Store)
		s.mux.Handle("/api/rigs", rigHandler)
		s.mux.Handle("/api/rigs/", rigHandler)
	}

	if s.config.Store != nil && s.config.Registry != nil {
		sessionHandler := api.NewSessionHandler(s.config.Store, s.config.Registry)
		wsHandler := NewRotationsHandler(s.config.Registry)
		streamHandler := NewDebugStreamHandler(s.config.Registry, s.config.DebugFPS)
		snapshotHandler := NewDebugSnapshotHandler(s.config.Registry)

		// Route the live views of a session before the REST handler.
		sessionRouter := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case strings.HasSuffix(r.URL.Path, "/ws"):
				wsHandler.ServeHTTP(w, r)
			case strings.HasSuffix(r.URL.Path, "/debug.mjpg"):
				streamHandler.ServeHTTP(w, r)
			case strings.HasSuffix(r.URL.Path, "/debug.png"):
				snapshotHandler.ServeHTTP(w, r)
			default:
				sessionHandler.ServeHTTP(w, r)
			}
		})

		s.mux.Handle("/api/sessions", sessionRouter)
		s.mux.Handle("/api/sessions/", sessionRouter)
	}

	// Serve static files if StaticDir is configured
	if s.config.StaticDir != "" {
		fs := http.FileServer(http.Dir(s.config.StaticDir))
		s.mux.Handle("/", fs)
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	uptime := time.Since(s.start)

	response := map[string]interface{}{
		"status": "ok",
		"uptime": uptime.String(),
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
		return
	}
}

// ListenAndServe starts the HTTP server on the given address.
func (s *Server) ListenAndServe(addr string) error {
	return http.ListenAndServe(addr, s)
}

// sessionID extracts {id} from /api/sessions/{id}/<suffix>.
func sessionID(path, suffix string) string {
	id := strings.TrimPrefix(path, "/api/sessions/")
	id = strings.TrimSuffix(id, "/"+suffix)
	if id == "" || strings.Contains(id, "/") {
		return ""
	}
	return id
}
