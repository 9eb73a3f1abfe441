package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/ayusman/retarget/internal/animator"
	"github.com/ayusman/retarget/internal/geom"
	"github.com/ayusman/retarget/internal/pose"
	"github.com/ayusman/retarget/internal/retarget"
	"github.com/ayusman/retarget/internal/session"
	"github.com/ayusman/retarget/internal/store"
)

// maxFrameBody bounds the size of a posted frame.
const maxFrameBody = 1 << 20

// SessionHandler handles HTTP requests for sessions and their frames.
type SessionHandler struct {
	store    *store.Store
	registry *session.Registry
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(s *store.Store, reg *session.Registry) *SessionHandler {
	return &SessionHandler{store: s, registry: reg}
}

// ServeHTTP routes:
//
//	/api/sessions               GET list, POST create
//	/api/sessions/{id}          GET, PATCH toggles, DELETE
//	/api/sessions/{id}/frames   GET stored frames, POST solve a frame
//	/api/sessions/{id}/joints   GET smoothed joints
func (h *SessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/sessions")

	switch len(parts) {
	case 0:
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case 1:
		id := parts[0]
		switch r.Method {
		case http.MethodGet:
			h.get(w, r, id)
		case http.MethodPatch:
			h.toggle(w, r, id)
		case http.MethodDelete:
			h.delete(w, r, id)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}

	case 2:
		id := parts[0]
		switch {
		case parts[1] == "frames" && r.Method == http.MethodPost:
			h.pushFrame(w, r, id)
		case parts[1] == "frames" && r.Method == http.MethodGet:
			h.listFrames(w, r, id)
		case parts[1] == "joints" && r.Method == http.MethodGet:
			h.joints(w, r, id)
		case parts[1] == "frames" || parts[1] == "joints":
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		default:
			writeError(w, http.StatusNotFound, "Not found")
		}

	default:
		writeError(w, http.StatusNotFound, "Not found")
	}
}

type createSessionRequest struct {
	RigID      string `json:"rig_id"`
	Flip       bool   `json:"flip"`
	RootMotion bool   `json:"root_motion"`
}

type toggleSessionRequest struct {
	Flip       *bool `json:"flip"`
	RootMotion *bool `json:"root_motion"`
}

type sessionResponse struct {
	ID         string `json:"id"`
	RigID      string `json:"rig_id"`
	Flip       bool   `json:"flip"`
	RootMotion bool   `json:"root_motion"`
	CreatedAt  string `json:"created_at"`
}

type listSessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

// frameRequest carries either named samples or a flat x,y,z array in
// pose.JointArrayOrder.
type frameRequest struct {
	Samples []pose.JointSample `json:"samples"`
	Array   []float64          `json:"array"`
}

type rotation struct {
	W float64 `json:"w"`
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type frameResponse struct {
	Sequence     int64                    `json:"sequence"`
	Timestamp    string                   `json:"timestamp"`
	Rotations    retarget.BoneRotationSet `json:"rotations"`
	RigRotations map[string]rotation      `json:"rig_rotations"`
	Root         [3]float64               `json:"root"`
	Joints       map[string][3]float64    `json:"joints"`
}

type listFramesResponse struct {
	Frames []*store.Frame `json:"frames"`
}

type jointsResponse struct {
	Joints map[string][3]float64 `json:"joints"`
}

func toSessionResponse(s store.Session) sessionResponse {
	return sessionResponse{
		ID:         s.ID,
		RigID:      s.RigID,
		Flip:       s.Flip,
		RootMotion: s.RootMotion,
		CreatedAt:  s.CreatedAt.Format(timeFormat),
	}
}

func vec(v geom.Vec3) [3]float64 {
	return [3]float64{v.X, v.Y, v.Z}
}

func vecs(in map[string]geom.Vec3) map[string][3]float64 {
	out := make(map[string][3]float64, len(in))
	for name, p := range in {
		out[name] = vec(p)
	}
	return out
}

// toFrameResponse also renames the rotations into the rig's own bone names.
func toFrameResponse(l *session.Live, res animator.Result) frameResponse {
	named, _ := l.Bones.Rename(res.Rotations)
	rig := make(map[string]rotation, len(named))
	for name, q := range named {
		rig[name] = rotation{W: q.Real, X: q.Imag, Y: q.Jmag, Z: q.Kmag}
	}
	return frameResponse{
		Sequence:     res.Sequence,
		Timestamp:    res.Timestamp.Format(time.RFC3339Nano),
		Rotations:    res.Rotations,
		RigRotations: rig,
		Root:         vec(res.Root),
		Joints:       vecs(res.Joints),
	}
}

// writeSessionError maps registry errors onto status codes.
func writeSessionError(w http.ResponseWriter, err error, what string) {
	if errors.Is(err, session.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Session not found")
		return
	}
	writeError(w, http.StatusInternalServerError, "Failed to "+what)
}

// list handles GET /api/sessions.
func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.store.Sessions().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list sessions")
		return
	}
	response := listSessionsResponse{Sessions: make([]sessionResponse, 0, len(sessions))}
	for _, s := range sessions {
		response.Sessions = append(response.Sessions, toSessionResponse(*s))
	}
	writeJSON(w, http.StatusOK, response)
}

// create handles POST /api/sessions.
func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.RigID == "" {
		writeError(w, http.StatusBadRequest, "rig_id is required")
		return
	}

	l, err := h.registry.Create(req.RigID, req.Flip, req.RootMotion)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(l.Session))
}

// get handles GET /api/sessions/{id}.
func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	s, err := h.store.Sessions().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(*s))
}

// toggle handles PATCH /api/sessions/{id}.
func (h *SessionHandler) toggle(w http.ResponseWriter, r *http.Request, id string) {
	var req toggleSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	l, err := h.registry.Get(id)
	if err != nil {
		writeSessionError(w, err, "get session")
		return
	}
	c := l.Animator.Config()
	flip, rootMotion := c.UseFlip, c.RootMotion
	if req.Flip != nil {
		flip = *req.Flip
	}
	if req.RootMotion != nil {
		rootMotion = *req.RootMotion
	}

	s, err := h.registry.SetToggles(id, flip, rootMotion)
	if err != nil {
		writeSessionError(w, err, "update session")
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(s))
}

// delete handles DELETE /api/sessions/{id}.
func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.registry.Delete(id); err != nil {
		writeSessionError(w, err, "delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pushFrame handles POST /api/sessions/{id}/frames.
func (h *SessionHandler) pushFrame(w http.ResponseWriter, r *http.Request, id string) {
	var req frameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxFrameBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	f := pose.Frame{Timestamp: time.Now(), Samples: req.Samples}
	if len(req.Array) > 0 {
		samples, err := pose.SamplesFromArray(req.Array)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Samples = append(f.Samples, samples...)
	}
	if err := f.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	l, err := h.registry.Get(id)
	if err != nil {
		writeSessionError(w, err, "get session")
		return
	}
	res, err := h.registry.Push(r.Context(), id, f)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toFrameResponse(l, res))
}

// listFrames handles GET /api/sessions/{id}/frames?limit=N.
func (h *SessionHandler) listFrames(w http.ResponseWriter, r *http.Request, id string) {
	if _, err := h.store.Sessions().GetByID(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Session not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get session")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	frames, err := h.store.Frames().ListBySession(id, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list frames")
		return
	}
	if frames == nil {
		frames = []*store.Frame{}
	}
	writeJSON(w, http.StatusOK, listFramesResponse{Frames: frames})
}

// joints handles GET /api/sessions/{id}/joints.
func (h *SessionHandler) joints(w http.ResponseWriter, r *http.Request, id string) {
	l, err := h.registry.Get(id)
	if err != nil {
		writeSessionError(w, err, "get session")
		return
	}
	writeJSON(w, http.StatusOK, jointsResponse{Joints: vecs(l.Animator.Joints())})
}
