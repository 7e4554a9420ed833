package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	service "github.com/okian/yecs/internal/app"
	"github.com/okian/yecs/internal/domain/model"
)

// EvaluateHandler accepts profiles for scoring.
type EvaluateHandler struct {
	deps Dependencies
}

// NewEvaluateHandler creates a new evaluate handler.
func NewEvaluateHandler(deps Dependencies) *EvaluateHandler {
	return &EvaluateHandler{deps: deps}
}

// evaluateRequest mirrors the OpenAPI schema for POST /scores/{subject}/evaluate.
type evaluateRequest struct {
	RequestID string        `json:"request_id,omitempty" validate:"omitempty,max=128"`
	Profile   model.Profile `json:"profile"`
}

// HandleEvaluate handles POST /scores/{subject}/evaluate. By default the
// profile is queued and 202 is returned; ?sync=true scores it inline and
// returns the assessment without storing it.
func (h *EvaluateHandler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	const op = "api.evaluate"

	var body evaluateRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	req := service.EvaluateRequest{
		RequestID: body.RequestID,
		Subject:   mux.Vars(r)["subject"],
		Profile:   body.Profile,
	}

	if sync, _ := strconv.ParseBool(r.URL.Query().Get("sync")); sync {
		a, err := h.deps.Preview(r.Context(), req)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, a)
		return
	}

	id, err := h.deps.Enqueue(r.Context(), req)
	switch {
	case errors.Is(err, service.ErrDuplicateRequest):
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", RequestID: id, Duplicate: true})
	case errors.Is(err, service.ErrQueueFull):
		writeError(w, http.StatusTooManyRequests, "backpressure", WrapKind(op, ErrBackpressure, err))
	case err != nil:
		writeErr(w, err)
	default:
		writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", RequestID: id})
	}
}
