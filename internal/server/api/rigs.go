package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/ayusman/retarget/internal/config"
	"github.com/ayusman/retarget/internal/rig"
	"github.com/ayusman/retarget/internal/store"
)

// RigHandler handles HTTP requests for rig profiles.
type RigHandler struct {
	store *store.Store
}

// NewRigHandler creates a new RigHandler with the given store.
func NewRigHandler(s *store.Store) *RigHandler {
	return &RigHandler{store: s}
}

// ServeHTTP routes /api/rigs and /api/rigs/{id}.
func (h *RigHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(r.URL.Path, "/api/rigs")

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			h.list(w, r)
		case http.MethodPost:
			h.create(w, r)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "Not found")
		return
	}

	id := parts[0]
	switch r.Method {
	case http.MethodGet:
		h.get(w, r, id)
	case http.MethodPut:
		h.update(w, r, id)
	case http.MethodDelete:
		h.delete(w, r, id)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

type rigRequest struct {
	Name    string            `json:"name"`
	Layout  string            `json:"layout"`
	BoneMap map[string]string `json:"bone_map"`
	Config  json.RawMessage   `json:"config"`
}

type rigResponse struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	Layout    string            `json:"layout"`
	BoneMap   map[string]string `json:"bone_map"`
	Config    json.RawMessage   `json:"config"`
	CreatedAt string            `json:"created_at"`
	UpdatedAt string            `json:"updated_at"`
}

type listRigsResponse struct {
	Rigs []rigResponse `json:"rigs"`
}

func toRigResponse(r *store.Rig) rigResponse {
	return rigResponse{
		ID:        r.ID,
		Name:      r.Name,
		Layout:    r.Layout,
		BoneMap:   r.BoneMap,
		Config:    r.Config,
		CreatedAt: r.CreatedAt.Format(timeFormat),
		UpdatedAt: r.UpdatedAt.Format(timeFormat),
	}
}

// validate checks the parts of a rig request that were supplied.
func (req *rigRequest) validate() string {
	if req.Layout != "" {
		if _, err := rig.LayoutByName(req.Layout); err != nil {
			return "Invalid layout"
		}
	}
	if len(req.BoneMap) > 0 {
		if _, err := rig.NewBoneMap(req.BoneMap); err != nil {
			return "Invalid bone map: " + err.Error()
		}
	}
	if len(req.Config) > 0 {
		if _, err := config.DefaultRetarget().Merge(req.Config); err != nil {
			return "Invalid config: " + err.Error()
		}
	}
	return ""
}

// list handles GET /api/rigs.
func (h *RigHandler) list(w http.ResponseWriter, r *http.Request) {
	rigs, err := h.store.Rigs().List()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rigs")
		return
	}

	response := listRigsResponse{Rigs: make([]rigResponse, 0, len(rigs))}
	for _, rg := range rigs {
		response.Rigs = append(response.Rigs, toRigResponse(rg))
	}
	writeJSON(w, http.StatusOK, response)
}

// get handles GET /api/rigs/{id}.
func (h *RigHandler) get(w http.ResponseWriter, r *http.Request, id string) {
	rg, err := h.store.Rigs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get rig")
		return
	}
	writeJSON(w, http.StatusOK, toRigResponse(rg))
}

// create handles POST /api/rigs.
func (h *RigHandler) create(w http.ResponseWriter, r *http.Request) {
	var req rigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Name is required")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	rg := &store.Rig{
		ID:      uuid.New().String(),
		Name:    req.Name,
		Layout:  req.Layout,
		BoneMap: req.BoneMap,
		Config:  req.Config,
	}
	if err := h.store.Rigs().Create(rg); err != nil {
		writeError(w, http.StatusConflict, "Failed to create rig")
		return
	}

	writeJSON(w, http.StatusCreated, toRigResponse(rg))
}

// update handles PUT /api/rigs/{id}. Omitted fields are left unchanged.
func (h *RigHandler) update(w http.ResponseWriter, r *http.Request, id string) {
	rg, err := h.store.Rigs().GetByID(id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to get rig")
		return
	}

	var req rigRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if req.Name != "" {
		rg.Name = req.Name
	}
	if req.Layout != "" {
		rg.Layout = req.Layout
	}
	if req.BoneMap != nil {
		rg.BoneMap = req.BoneMap
	}
	if len(req.Config) > 0 {
		rg.Config = req.Config
	}

	if err := h.store.Rigs().Update(rg); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update rig")
		return
	}
	writeJSON(w, http.StatusOK, toRigResponse(rg))
}

// delete handles DELETE /api/rigs/{id}.
func (h *RigHandler) delete(w http.ResponseWriter, r *http.Request, id string) {
	if err := h.store.Rigs().Delete(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Rig not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to delete rig")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
