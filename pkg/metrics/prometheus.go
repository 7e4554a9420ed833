// Package metrics provides Prometheus metrics for the YECS scoring engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// compositeBuckets cover the published 300-850 score range.
var compositeBuckets = []float64{300, 400, 500, 570, 600, 630, 660, 690, 720, 750, 780, 800, 850} //nolint:gochecknoglobals // fixed bucket layout

// Manager manages all Prometheus metrics for the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Scoring
	snapshotsApplied *prometheus.CounterVec
	snapshotsStale   prometheus.Counter
	compositeScore   *prometheus.HistogramVec
	storeSubjects    prometheus.Gauge

	// Inference boundary
	inferenceLatency   prometheus.Histogram
	inferenceReachable prometheus.Gauge
	fallbacks          *prometheus.CounterVec
	breakerState       prometheus.Gauge

	// Synchronization
	sessionsActive     prometheus.Gauge
	sessionTransitions *prometheus.CounterVec
	transportErrors    *prometheus.CounterVec
	framesReceived     *prometheus.CounterVec
	framesDropped      *prometheus.CounterVec
	mutationsSent      prometheus.Counter
	mutationsDropped   prometheus.Counter
	refreshRequests    *prometheus.CounterVec
	reconnectAttempts  prometheus.Counter

	// Evaluation queue and workers
	queueSize               *prometheus.GaugeVec
	queueEnqueueErrors      *prometheus.CounterVec
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter
	evaluationsDuplicate    prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "yecs",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}
	counterVec := func(name, help string, lbls ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		}, lbls)
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: labels,
		})
	}

	m.snapshotsApplied = counterVec("snapshots_applied_total", "Snapshots written to the store, by source", "source")
	m.snapshotsStale = counter("snapshots_stale_total", "Snapshots discarded because an equal-or-newer one was already stored")
	m.compositeScore = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("composite_score"),
		Help: "Distribution of composite scores produced, by source", Buckets: compositeBuckets, ConstLabels: labels,
	}, []string{"source"})
	m.storeSubjects = gauge("store_subjects", "Subjects currently held in the snapshot store")

	m.inferenceLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("inference_latency_milliseconds"),
		Help: "Latency of calls to the inference collaborator in milliseconds", Buckets: m.histogramBuckets, ConstLabels: labels,
	})
	m.inferenceReachable = gauge("inference_reachable", "1 when the last connectivity probe succeeded")
	m.fallbacks = counterVec("fallbacks_total", "Assessments produced by the fallback evaluator, by reason", "reason")
	m.breakerState = gauge("inference_breaker_state", "Inference circuit breaker state (0 closed, 1 half-open, 2 open)")

	m.sessionsActive = gauge("sessions_active", "Live synchronization sessions")
	m.sessionTransitions = counterVec("session_transitions_total", "Session state transitions", "from", "to")
	m.transportErrors = counterVec("transport_errors_total", "Channel failures by operation", "op")
	m.framesReceived = counterVec("frames_received_total", "Inbound frames by event name", "event")
	m.framesDropped = counterVec("frames_dropped_total", "Inbound frames dropped, by reason", "reason")
	m.mutationsSent = counter("mutations_sent_total", "Optimistic mutations sent over the channel")
	m.mutationsDropped = counter("mutations_dropped_total", "Optimistic mutations discarded on disconnect")
	m.refreshRequests = counterVec("refresh_requests_total", "Refresh requests by outcome", "outcome")
	m.reconnectAttempts = counter("reconnect_attempts_total", "Reconnect attempts issued by the supervisor")

	m.queueSize = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("queue_size"),
		Help: "Current queue length", ConstLabels: labels,
	}, []string{"queue"})
	m.queueEnqueueErrors = counterVec("queue_enqueue_errors_total", "Rejected enqueue attempts, by queue and reason", "queue", "reason")
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("worker_processing_latency_milliseconds"),
		Help: "Time to process one evaluation job in milliseconds", Buckets: m.histogramBuckets, ConstLabels: labels,
	})
	m.workerErrors = counter("worker_errors_total", "Evaluation jobs that failed to apply")
	m.evaluationsDuplicate = counter("evaluations_duplicate_total", "Evaluation requests rejected as duplicates")

	m.httpRequests = counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("http_request_duration_milliseconds"),
		Help: "HTTP request duration in milliseconds", Buckets: m.histogramBuckets, ConstLabels: labels,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = gauge("system_goroutines", "Number of goroutines")
}

// Manager-level recorders. Package-level helpers below forward to the global manager.

func (m *Manager) RecordSnapshotApplied(source string, composite int) {
	if !m.enabled {
		return
	}
	m.snapshotsApplied.WithLabelValues(source).Inc()
	m.compositeScore.WithLabelValues(source).Observe(float64(composite))
}

func (m *Manager) RecordSnapshotStale() {
	if m.enabled {
		m.snapshotsStale.Inc()
	}
}

func (m *Manager) UpdateStoreSubjects(n int) {
	if m.enabled {
		m.storeSubjects.Set(float64(n))
	}
}

func (m *Manager) RecordInferenceLatency(ms float64) {
	if m.enabled {
		m.inferenceLatency.Observe(ms)
	}
}

func (m *Manager) SetInferenceReachable(ok bool) {
	if !m.enabled {
		return
	}
	if ok {
		m.inferenceReachable.Set(1)
		return
	}
	m.inferenceReachable.Set(0)
}

func (m *Manager) RecordFallback(reason string) {
	if m.enabled {
		m.fallbacks.WithLabelValues(reason).Inc()
	}
}

func (m *Manager) SetBreakerState(state int) {
	if m.enabled {
		m.breakerState.Set(float64(state))
	}
}

func (m *Manager) AddSessionsActive(delta int) {
	if m.enabled {
		m.sessionsActive.Add(float64(delta))
	}
}

func (m *Manager) RecordSessionTransition(from, to string) {
	if m.enabled {
		m.sessionTransitions.WithLabelValues(from, to).Inc()
	}
}

func (m *Manager) RecordTransportError(op string) {
	if m.enabled {
		m.transportErrors.WithLabelValues(op).Inc()
	}
}

func (m *Manager) RecordFrameReceived(event string) {
	if m.enabled {
		m.framesReceived.WithLabelValues(event).Inc()
	}
}

func (m *Manager) RecordFrameDropped(reason string) {
	if m.enabled {
		m.framesDropped.WithLabelValues(reason).Inc()
	}
}

func (m *Manager) RecordMutationSent() {
	if m.enabled {
		m.mutationsSent.Inc()
	}
}

func (m *Manager) RecordMutationsDropped(n int) {
	if m.enabled && n > 0 {
		m.mutationsDropped.Add(float64(n))
	}
}

func (m *Manager) RecordRefresh(outcome string) {
	if m.enabled {
		m.refreshRequests.WithLabelValues(outcome).Inc()
	}
}

func (m *Manager) RecordReconnectAttempt() {
	if m.enabled {
		m.reconnectAttempts.Inc()
	}
}

func (m *Manager) UpdateQueueSize(queue string, size int) {
	if m.enabled {
		m.queueSize.WithLabelValues(queue).Set(float64(size))
	}
}

func (m *Manager) RecordQueueEnqueueError(queue, reason string) {
	if m.enabled {
		m.queueEnqueueErrors.WithLabelValues(queue, reason).Inc()
	}
}

func (m *Manager) RecordWorkerProcessingLatency(ms float64) {
	if m.enabled {
		m.workerProcessingLatency.Observe(ms)
	}
}

func (m *Manager) RecordWorkerError() {
	if m.enabled {
		m.workerErrors.Inc()
	}
}

func (m *Manager) RecordEvaluationDuplicate() {
	if m.enabled {
		m.evaluationsDuplicate.Inc()
	}
}

func (m *Manager) RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	if !m.enabled {
		return
	}
	m.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	m.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

func (m *Manager) UpdateSystem(memBytes uint64, goroutines int) {
	if !m.enabled {
		return
	}
	m.systemMemoryUsage.Set(float64(memBytes))
	m.systemGoroutineCount.Set(float64(goroutines))
}

// RefreshInterval is how often callers should refresh polled gauges.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

// Global helper functions for easy access.

func RecordSnapshotApplied(source string, composite int) {
	globalManager.RecordSnapshotApplied(source, composite)
}
func RecordSnapshotStale()                   { globalManager.RecordSnapshotStale() }
func UpdateStoreSubjects(n int)              { globalManager.UpdateStoreSubjects(n) }
func RecordInferenceLatency(ms float64)      { globalManager.RecordInferenceLatency(ms) }
func SetInferenceReachable(ok bool)          { globalManager.SetInferenceReachable(ok) }
func RecordFallback(reason string)           { globalManager.RecordFallback(reason) }
func SetBreakerState(state int)              { globalManager.SetBreakerState(state) }
func AddSessionsActive(delta int)            { globalManager.AddSessionsActive(delta) }
func RecordSessionTransition(from, to string) { globalManager.RecordSessionTransition(from, to) }
func RecordTransportError(op string)         { globalManager.RecordTransportError(op) }
func RecordFrameReceived(event string)       { globalManager.RecordFrameReceived(event) }
func RecordFrameDropped(reason string)       { globalManager.RecordFrameDropped(reason) }
func RecordMutationSent()                    { globalManager.RecordMutationSent() }
func RecordMutationsDropped(n int)           { globalManager.RecordMutationsDropped(n) }
func RecordRefresh(outcome string)           { globalManager.RecordRefresh(outcome) }
func RecordReconnectAttempt()                { globalManager.RecordReconnectAttempt() }
func UpdateQueueSize(queue string, size int) { globalManager.UpdateQueueSize(queue, size) }
func RecordQueueEnqueueError(queue, reason string) {
	globalManager.RecordQueueEnqueueError(queue, reason)
}
func RecordWorkerProcessingLatency(ms float64) { globalManager.RecordWorkerProcessingLatency(ms) }
func RecordWorkerError()                       { globalManager.RecordWorkerError() }
func RecordEvaluationDuplicate()               { globalManager.RecordEvaluationDuplicate() }
func RecordHTTPRequest(endpoint, method, statusCode string, durationMs float64) {
	globalManager.RecordHTTPRequest(endpoint, method, statusCode, durationMs)
}
func UpdateSystem(memBytes uint64, goroutines int) { globalManager.UpdateSystem(memBytes, goroutines) }
func RefreshInterval() time.Duration               { return globalManager.RefreshInterval() }

// GetRegistry returns the custom registry the global manager records into.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
