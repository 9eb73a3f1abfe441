package server

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ayusman/retarget/internal/debugviz"
	"github.com/ayusman/retarget/internal/session"
)

// Debug image sizes.
const (
	debugWidth         = 480
	debugHeight        = 480
	debugPixelsPerUnit = 80
)

func lookupSession(w http.ResponseWriter, reg *session.Registry, id string) (*session.Live, bool) {
	l, err := reg.Get(id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return nil, false
		}
		http.Error(w, "Failed to get session", http.StatusInternalServerError)
		return nil, false
	}
	return l, true
}

// DebugStreamHandler serves the debug overlay of a session as MJPEG.
type DebugStreamHandler struct {
	registry *session.Registry
	renderer *debugviz.ImageRenderer
	interval time.Duration
}

// NewDebugStreamHandler creates a new DebugStreamHandler streaming at fps.
func NewDebugStreamHandler(reg *session.Registry, fps int) *DebugStreamHandler {
	return &DebugStreamHandler{
		registry: reg,
		renderer: debugviz.NewImageRenderer(debugWidth, debugHeight, debugPixelsPerUnit),
		interval: time.Second / time.Duration(fps),
	}
}

// ServeHTTP streams MJPEG frames to connected clients.
func (h *DebugStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	l, ok := lookupSession(w, h.registry, sessionID(r.URL.Path, "debug.mjpg"))
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary=frame")

	flusher, canFlush := w.(http.Flusher)
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	var buf bytes.Buffer
	for {
		buf.Reset()
		if err := h.renderer.Render(&buf, l.Animator.Scene()); err != nil {
			return
		}

		fmt.Fprintf(w, "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", buf.Len())
		if _, err := w.Write(buf.Bytes()); err != nil {
			return
		}
		fmt.Fprint(w, "\r\n")
		if canFlush {
			flusher.Flush()
		}

		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
		}
	}
}

// DebugSnapshotHandler serves a PNG plot of a session's debug overlay.
type DebugSnapshotHandler struct {
	registry *session.Registry
}

// NewDebugSnapshotHandler creates a new DebugSnapshotHandler.
func NewDebugSnapshotHandler(reg *session.Registry) *DebugSnapshotHandler {
	return &DebugSnapshotHandler{registry: reg}
}

// ServeHTTP renders one snapshot.
func (h *DebugSnapshotHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	id := sessionID(r.URL.Path, "debug.png")
	l, ok := lookupSession(w, h.registry, id)
	if !ok {
		return
	}

	renderer := debugviz.NewPlotRenderer("session " + id)
	var buf bytes.Buffer
	if err := renderer.Render(&buf, l.Animator.Scene()); err != nil {
		http.Error(w, "Failed to render snapshot", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", renderer.ContentType())
	w.Write(buf.Bytes())
}
