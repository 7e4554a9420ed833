package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/okian/yecs/internal/session"
)

// SessionHandler manages HTTP-held subscriptions.
type SessionHandler struct {
	deps Dependencies
}

// NewSessionHandler creates a new session handler.
func NewSessionHandler(deps Dependencies) *SessionHandler {
	return &SessionHandler{deps: deps}
}

// HandleSubscribe handles PUT /scores/{subject}/subscription. A session
// whose first connect failed is still held and retried, so the answer is
// 202 with the error in the body.
func (h *SessionHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.Subscribe(r.Context(), mux.Vars(r)["subject"])
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, st)
	case errors.Is(err, session.ErrTransport) && st.Subject != "":
		writeJSON(w, http.StatusAccepted, st)
	default:
		writeErr(w, err)
	}
}

// HandleUnsubscribe handles DELETE /scores/{subject}/subscription. Releasing
// a subject nobody holds is not an error.
func (h *SessionHandler) HandleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	_ = h.deps.Unsubscribe(r.Context(), mux.Vars(r)["subject"])
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus handles GET /scores/{subject}/session.
func (h *SessionHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.deps.SessionStatus(mux.Vars(r)["subject"])
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// HandleReconnect handles POST /scores/{subject}/reconnect.
func (h *SessionHandler) HandleReconnect(w http.ResponseWriter, r *http.Request) {
	subject := mux.Vars(r)["subject"]
	if err := h.deps.Reconnect(r.Context(), subject); err != nil {
		writeErr(w, err)
		return
	}
	st, err := h.deps.SessionStatus(subject)
	if err != nil {
		writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}
