// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/okian/yecs/internal/adapters/repository"
	service "github.com/okian/yecs/internal/app"
	"github.com/okian/yecs/internal/domain/lending"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/internal/session"
	"github.com/shopspring/decimal"
)

// Dependencies required by HTTP handlers. The interface bundle keeps the
// handler layer loosely coupled to the service implementation.
type Dependencies interface {
	StatsProvider
	ReadinessProvider

	Snapshot(ctx context.Context, subject string) (model.ScoreSnapshot, error)

	Subscribe(ctx context.Context, subject string) (session.Status, error)
	Unsubscribe(ctx context.Context, subject string) error
	SessionStatus(subject string) (session.Status, error)
	Reconnect(ctx context.Context, subject string) error

	Edit(ctx context.Context, subject string, m session.Mutation) (model.ScoreSnapshot, error)
	Refresh(ctx context.Context, subject string) error

	Enqueue(ctx context.Context, req service.EvaluateRequest) (string, error)
	Preview(ctx context.Context, req service.EvaluateRequest) (model.Assessment, error)

	Offers(ctx context.Context, subject string, amount decimal.Decimal) ([]model.LoanOffer, error)
	Insights(ctx context.Context, subject string) (service.Insights, error)
}

// Server wires HTTP routes for the scoring API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	scoresHandler  *ScoresHandler
	sessionHandler *SessionHandler
	evalHandler    *EvaluateHandler
	lendingHandler *LendingHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(deps),
		scoresHandler:  NewScoresHandler(deps),
		sessionHandler: NewSessionHandler(deps),
		evalHandler:    NewEvaluateHandler(deps),
		lendingHandler: NewLendingHandler(deps),
	}
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(_ context.Context, r *mux.Router) {
	r.Use(MetricsMiddleware)

	r.HandleFunc("/healthz", s.healthHandler.HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.healthHandler.HandleReady).Methods(http.MethodGet)
	r.HandleFunc("/stats", s.statsHandler.HandleStats).Methods(http.MethodGet)

	sr := r.PathPrefix("/scores/{subject}").Subrouter()
	sr.HandleFunc("", s.scoresHandler.HandleGetSnapshot).Methods(http.MethodGet)
	sr.HandleFunc("/subscription", s.sessionHandler.HandleSubscribe).Methods(http.MethodPut)
	sr.HandleFunc("/subscription", s.sessionHandler.HandleUnsubscribe).Methods(http.MethodDelete)
	sr.HandleFunc("/session", s.sessionHandler.HandleStatus).Methods(http.MethodGet)
	sr.HandleFunc("/reconnect", s.sessionHandler.HandleReconnect).Methods(http.MethodPost)
	sr.HandleFunc("/factors/{category}", s.scoresHandler.HandleEdit).Methods(http.MethodPatch)
	sr.HandleFunc("/refresh", s.scoresHandler.HandleRefresh).Methods(http.MethodPost)
	sr.HandleFunc("/evaluate", s.evalHandler.HandleEvaluate).Methods(http.MethodPost)
	sr.HandleFunc("/offers", s.lendingHandler.HandleOffers).Methods(http.MethodGet)
	sr.HandleFunc("/insights", s.lendingHandler.HandleInsights).Methods(http.MethodGet)
}

// Handler returns a router with every route registered.
func (s *Server) Handler(ctx context.Context) *mux.Router {
	r := mux.NewRouter()
	s.Register(ctx, r)
	return r
}

type ackResponse struct {
	Status    string `json:"status"`
	RequestID string `json:"request_id,omitempty"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var requestValidator = validator.New(validator.WithRequiredStructEnabled())

// decodeJSON reads an optional body into v and validates it.
func decodeJSON(r *http.Request, v any) error {
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
			return err
		}
	}
	return requestValidator.Struct(v)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeErr maps upstream sentinels onto status codes.
func writeErr(w http.ResponseWriter, err error) {
	status, code := classify(err)
	writeError(w, status, code, err)
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, repository.ErrEmptySubject),
		errors.Is(err, model.ErrInvalidProfile),
		errors.Is(err, model.ErrUnknownCategory),
		errors.Is(err, scoring.ErrInvalidFactorInput),
		errors.Is(err, lending.ErrInvalidAmount):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, repository.ErrNotFound),
		errors.Is(err, session.ErrNoSession),
		errors.Is(err, service.ErrNotSubscribed):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, session.ErrNoSnapshot),
		errors.Is(err, session.ErrStaleEdit),
		errors.Is(err, session.ErrInvalidState):
		return http.StatusConflict, "conflict"
	case errors.Is(err, session.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, ErrBackpressure), errors.Is(err, service.ErrQueueFull):
		return http.StatusTooManyRequests, "backpressure"
	case errors.Is(err, session.ErrTransport):
		return http.StatusBadGateway, "transport_error"
	case errors.Is(err, session.ErrNotConnected),
		errors.Is(err, session.ErrClosed),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}
