package api

import (
	"net/http"

	service "github.com/okian/yecs/internal/app"
	"github.com/okian/yecs/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessProvider reports collaborator health.
type ReadinessProvider interface {
	Ready() service.Readiness
}

// HealthHandler handles liveness and readiness requests.
type HealthHandler struct {
	ready ReadinessProvider
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(ready ReadinessProvider) *HealthHandler {
	return &HealthHandler{ready: ready}
}

// HandleHealth handles GET /healthz by serving Prometheus metrics.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

// HandleReady handles GET /readyz. An unreachable inference collaborator
// degrades scoring to the fallback path, so it is reported but never fails
// the probe.
func (h *HealthHandler) HandleReady(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.ready.Ready())
}
