package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/session"
)

// ScoresHandler serves snapshots and optimistic edits.
type ScoresHandler struct {
	deps Dependencies
}

// NewScoresHandler creates a new scores handler.
func NewScoresHandler(deps Dependencies) *ScoresHandler {
	return &ScoresHandler{deps: deps}
}

// editRequest is the body of PATCH /scores/{subject}/factors/{category}.
type editRequest struct {
	Score      float64            `json:"score" validate:"gte=0,lte=100"`
	SubMetrics map[string]float64 `json:"sub_metrics,omitempty" validate:"omitempty,dive,gte=0,lte=100"`
	EditID     string             `json:"edit_id,omitempty"`
	At         time.Time          `json:"at,omitempty"`
}

// HandleGetSnapshot handles GET /scores/{subject}.
func (h *ScoresHandler) HandleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, err := h.deps.Snapshot(r.Context(), mux.Vars(r)["subject"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleEdit handles PATCH /scores/{subject}/factors/{category}. The
// optimistic snapshot is returned at once; the server's answer follows as an
// ordinary push.
func (h *ScoresHandler) HandleEdit(w http.ResponseWriter, r *http.Request) {
	const op = "api.edit_factor"
	vars := mux.Vars(r)

	category, err := model.ParseCategory(vars["category"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	var req editRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	snap, err := h.deps.Edit(r.Context(), vars["subject"], session.Mutation{
		EditID:     req.EditID,
		Category:   category,
		Score:      req.Score,
		SubMetrics: req.SubMetrics,
		At:         req.At,
	})
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// HandleRefresh handles POST /scores/{subject}/refresh.
func (h *ScoresHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.deps.Refresh(r.Context(), mux.Vars(r)["subject"]); err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "requested"})
}
