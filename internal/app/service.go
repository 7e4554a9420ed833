// Package service wires the scoring engine, sessions, inference and the
// evaluation pipeline into the operations the HTTP API exposes.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/yecs/internal/adapters/inference"
	eventqueue "github.com/okian/yecs/internal/adapters/mq/queue"
	workerpool "github.com/okian/yecs/internal/adapters/mq/worker"
	"github.com/okian/yecs/internal/adapters/repository"
	"github.com/okian/yecs/internal/adapters/ws"
	"github.com/okian/yecs/internal/config"
	"github.com/okian/yecs/internal/domain/analysis"
	"github.com/okian/yecs/internal/domain/dedupe"
	"github.com/okian/yecs/internal/domain/fallback"
	"github.com/okian/yecs/internal/domain/lending"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/normalize"
	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/internal/session"
	"github.com/okian/yecs/pkg/logger"
	"github.com/okian/yecs/pkg/metrics"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	evaluationQueueName = "evaluations"
	redisDialTimeout    = 3 * time.Second
)

// EvaluateRequest asks for a profile to be scored for a subject.
type EvaluateRequest struct {
	// RequestID makes retries idempotent. Generated when empty.
	RequestID string        `json:"request_id,omitempty"`
	Subject   string        `json:"-"`
	Profile   model.Profile `json:"profile"`
}

// Insights bundles per-category advice with the latest narrative.
type Insights struct {
	Subject         string                                `json:"subject"`
	Composite       int                                   `json:"score"`
	Categories      map[model.FactorCategory]CategoryNote `json:"categories"`
	Suggestions     []string                              `json:"suggestions"`
	Narrative       string                                `json:"analysis,omitempty"`
	Recommendations []string                              `json:"recommendations,omitempty"`
}

// CategoryNote is the score and advice for one category.
type CategoryNote struct {
	Score    float64  `json:"score"`
	Weight   float64  `json:"weight"`
	Insights []string `json:"insights,omitempty"`
}

// Readiness summarizes the collaborators the service depends on.
type Readiness struct {
	Inference          string `json:"inference_provider"`
	InferenceReachable bool   `json:"inference_reachable"`
	Sessions           int    `json:"sessions"`
	SessionsInError    int    `json:"sessions_in_error"`
	CacheEnabled       bool   `json:"cache_enabled"`
}

// Service owns every long-lived component.
type Service struct {
	mu sync.RWMutex

	cfg         *config.Config
	workerCount int
	queueSize   int
	dedupeSize  int

	// Core components
	engine     *scoring.Engine
	store      *repository.MemStore
	cache      repository.Cache
	redis      *redis.Client
	manager    *session.Manager
	supervisor *supervisor
	inference  inference.Client
	probe      *inference.Probe
	analyzer   *analysis.Analyzer
	deduper    dedupe.Deduper
	queue      *eventqueue.InMemoryQueue[workerpool.Job]
	pool       *workerpool.Pool
	lenders    *lending.TierTable
	dial       session.DialFunc

	// HTTP-held subscriptions, one per subject. subscribing collapses
	// concurrent first subscribes so only one dial runs per subject.
	subsMu      sync.Mutex
	subs        map[string]*session.Subscription
	subscribing singleflight.Group

	// Latest narrative per subject from the evaluation pipeline.
	resultsMu sync.RWMutex
	results   map[string]model.Assessment

	started bool
	cancel  context.CancelFunc
	logger  logger.Logger
}

// New constructs a Service. Components are built by Start.
func New(opts ...Option) *Service {
	s := &Service{
		cfg:     config.New(),
		subs:    make(map[string]*session.Subscription),
		results: make(map[string]model.Assessment),
		lenders: lending.NewTierTable(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.workerCount == 0 {
		s.workerCount = s.cfg.WorkerCount
	}
	if s.queueSize == 0 {
		s.queueSize = s.cfg.EventQueueSize
	}
	if s.dedupeSize == 0 {
		s.dedupeSize = s.cfg.DedupeSize
	}
	return s
}

// Start builds and starts the components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	cfg := s.cfg

	s.logger.Info(ctx, "starting scoring service...")

	table, err := weightTable(cfg.Weights)
	if err != nil {
		return err
	}
	s.engine = scoring.NewEngine(table, scoring.WithRefreshInterval(cfg.RefreshInterval))
	norm := normalize.New(
		normalize.WithWeights(table),
		normalize.WithIdealAgeBand(cfg.IdealAgeMin, cfg.IdealAgeMax),
	)

	if s.inference == nil {
		client, err := inference.New(ctx, cfg)
		if err != nil {
			return err
		}
		s.inference = client
	}
	s.analyzer = analysis.New(s.inference,
		analysis.WithTimeout(cfg.InferenceTimeout),
		analysis.WithEngine(s.engine),
		analysis.WithNormalizer(norm),
		analysis.WithFallback(fallback.New(
			fallback.WithNormalizer(norm),
			fallback.WithRefreshInterval(cfg.RefreshInterval),
		)),
	)

	if s.cache == nil && cfg.RedisAddr != "" {
		dctx, cancel := context.WithTimeout(ctx, redisDialTimeout)
		client, err := repository.DialRedis(dctx, cfg.RedisAddr)
		cancel()
		if err != nil {
			s.logger.Warn(ctx, "snapshot cache disabled", logger.String("addr", cfg.RedisAddr), logger.Error(err))
		} else {
			s.redis = client
			s.cache = repository.NewRedisCache(client, repository.WithTTL(cfg.CacheTTL))
		}
	}
	storeOpts := []repository.Option{}
	if s.cache != nil {
		storeOpts = append(storeOpts, repository.WithCache(s.cache))
	}
	s.store = repository.NewMemStore(storeOpts...)

	if s.dial == nil {
		dialer := ws.NewDialer()
		url := cfg.ChannelURL
		s.dial = func(ctx context.Context, _ string) (session.Conn, error) {
			c, err := dialer.Dial(ctx, url)
			if err != nil {
				return nil, err
			}
			return c, nil
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel

	s.supervisor = newSupervisor(cfg.ReconnectBase, cfg.ReconnectMax, cfg.ReconnectMaxAttempts, s.logger.Named("supervisor"))
	s.supervisor.start(runCtx)
	s.manager = session.NewManager(s.dial, s.store,
		session.WithEngine(s.engine),
		session.WithAckTimeout(cfg.AckTimeout),
		session.WithRefreshInterval(cfg.RefreshInterval),
		session.WithRefreshLimit(cfg.RefreshRate, cfg.RefreshBurst),
		session.WithStateHook(s.supervisor.onState),
	)

	s.probe = inference.NewProbe(s.inference, inference.WithProbeInterval(cfg.ProbeInterval))
	go s.probe.Run(runCtx)

	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.queue = eventqueue.NewInMemoryQueue[workerpool.Job](
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithName(evaluationQueueName),
	)
	s.pool = workerpool.NewPool(s.workerCount, s.queue, s.analyzer, s.manager,
		workerpool.WithResultHook(s.recordResult),
	)
	s.pool.Start(runCtx)

	s.started = true
	s.logger.Info(ctx, "scoring service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.String("inference", s.inference.Name()),
		logger.Bool("cache", s.cache != nil),
	)
	return nil
}

// Stop releases held subscriptions, closes every session and drains the
// workers.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping scoring service...")

	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "worker shutdown incomplete", logger.Error(err))
	}

	s.subsMu.Lock()
	for id, sub := range s.subs {
		sub.Release()
		delete(s.subs, id)
	}
	s.subsMu.Unlock()

	s.manager.Close()
	s.cancel()
	s.supervisor.wait()

	if c, ok := s.inference.(interface{ Close() error }); ok {
		_ = c.Close()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}

	s.started = false
	s.logger.Info(ctx, "scoring service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Snapshot returns the current snapshot for subject.
func (s *Service) Snapshot(ctx context.Context, subject string) (model.ScoreSnapshot, error) {
	if err := s.running(); err != nil {
		return model.ScoreSnapshot{}, err
	}
	return s.store.Get(ctx, subject)
}

// Subscribe takes an HTTP-held interest in subject, opening its session if
// needed. A cached snapshot seeds the store so offline reads work. When the
// first connect fails the returned status carries the error along with it.
func (s *Service) Subscribe(ctx context.Context, subject string) (session.Status, error) {
	if err := s.running(); err != nil {
		return session.Status{}, err
	}

	if sub, ok := s.held(subject); ok {
		return sub.Session().Status(), nil
	}

	v, err, _ := s.subscribing.Do(subject, func() (any, error) {
		if sub, ok := s.held(subject); ok {
			return sub.Session().Status(), nil
		}

		if s.cache != nil {
			if _, err := s.store.Get(ctx, subject); errors.Is(err, repository.ErrNotFound) {
				if _, err := s.store.Seed(ctx, subject); err == nil {
					s.logger.Debug(ctx, "seeded from cache", logger.Subject(subject))
				}
			}
		}

		sub, err := s.manager.Acquire(ctx, subject)
		if sub == nil {
			return session.Status{}, err
		}
		if rerr := s.running(); rerr != nil {
			sub.Release()
			return session.Status{}, rerr
		}

		s.subsMu.Lock()
		prev := s.subs[subject]
		s.subs[subject] = sub
		s.subsMu.Unlock()
		if prev != nil {
			prev.Release()
		}
		return sub.Session().Status(), err
	})
	st, _ := v.(session.Status)
	return st, err
}

// held returns the HTTP-held subscription for subject while its session is
// still live. A subscription whose session ended on its own is evicted.
func (s *Service) held(subject string) (*session.Subscription, bool) {
	s.subsMu.Lock()
	sub, ok := s.subs[subject]
	if !ok {
		s.subsMu.Unlock()
		return nil, false
	}
	if s.live(sub) {
		s.subsMu.Unlock()
		return sub, true
	}
	delete(s.subs, subject)
	s.subsMu.Unlock()

	sub.Release()
	return nil, false
}

func (s *Service) live(sub *session.Subscription) bool {
	select {
	case <-sub.Done():
		return false
	default:
	}
	cur, ok := s.manager.Session(sub.Subject())
	return ok && cur == sub.Session()
}

// Unsubscribe releases the HTTP-held interest in subject.
func (s *Service) Unsubscribe(_ context.Context, subject string) error {
	s.subsMu.Lock()
	sub, ok := s.subs[subject]
	delete(s.subs, subject)
	s.subsMu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, subject)
	}
	sub.Release()
	return nil
}

// SessionStatus reports state and last error for subject's session.
func (s *Service) SessionStatus(subject string) (session.Status, error) {
	if err := s.running(); err != nil {
		return session.Status{}, err
	}
	sess, ok := s.manager.Session(subject)
	if !ok {
		return session.Status{}, fmt.Errorf("%w: %s", session.ErrNoSession, subject)
	}
	return sess.Status(), nil
}

// Sessions lists every open session.
func (s *Service) Sessions() []session.Status {
	if s.running() != nil {
		return nil
	}
	return s.manager.Statuses()
}

// Reconnect retries the channel for a session in Error.
func (s *Service) Reconnect(ctx context.Context, subject string) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.manager.Reconnect(ctx, subject)
}

// Edit applies an optimistic category edit.
func (s *Service) Edit(ctx context.Context, subject string, m session.Mutation) (model.ScoreSnapshot, error) {
	if err := s.running(); err != nil {
		return model.ScoreSnapshot{}, err
	}
	return s.manager.Edit(ctx, subject, m)
}

// Refresh asks the authoritative server for a new snapshot.
func (s *Service) Refresh(ctx context.Context, subject string) error {
	if err := s.running(); err != nil {
		return err
	}
	return s.manager.Refresh(ctx, subject)
}

// SeenAndRecord atomically checks if a request id was seen and records it if not.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEvaluationDuplicate()
	}
	return seen
}

// Enqueue submits an evaluation for asynchronous processing and returns the
// request id. A repeated request id yields ErrDuplicateRequest.
func (s *Service) Enqueue(ctx context.Context, req EvaluateRequest) (string, error) {
	if err := s.running(); err != nil {
		return "", err
	}
	if req.Subject == "" {
		return "", repository.ErrEmptySubject
	}
	if err := req.Profile.Validate(); err != nil {
		return "", err
	}
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}

	if s.SeenAndRecord(ctx, req.RequestID) {
		s.logger.Debug(ctx, "duplicate evaluation request, skipping",
			logger.String("request_id", req.RequestID),
			logger.Subject(req.Subject),
		)
		return req.RequestID, ErrDuplicateRequest
	}

	job := workerpool.Job{
		RequestID:  req.RequestID,
		Subject:    req.Subject,
		Profile:    req.Profile,
		EnqueuedAt: time.Now(),
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		s.deduper.Unrecord(ctx, req.RequestID)
		if errors.Is(err, eventqueue.ErrFull) {
			return "", fmt.Errorf("%w: %w", ErrQueueFull, err)
		}
		return "", err
	}
	return req.RequestID, nil
}

// Preview scores a profile synchronously without storing the result.
func (s *Service) Preview(ctx context.Context, req EvaluateRequest) (model.Assessment, error) {
	if err := s.running(); err != nil {
		return model.Assessment{}, err
	}
	if err := req.Profile.Validate(); err != nil {
		return model.Assessment{}, err
	}
	a := s.analyzer.Analyze(ctx, req.Subject, req.Profile)
	a.Snapshot.Subject = req.Subject
	return a, nil
}

// Offers lists loan offers for subject's current composite.
func (s *Service) Offers(ctx context.Context, subject string, amount decimal.Decimal) ([]model.LoanOffer, error) {
	snap, err := s.Snapshot(ctx, subject)
	if err != nil {
		return nil, err
	}
	return s.lenders.Offers(snap.Composite, amount)
}

// Insights returns category advice and suggestions for subject.
func (s *Service) Insights(ctx context.Context, subject string) (Insights, error) {
	snap, err := s.Snapshot(ctx, subject)
	if err != nil {
		return Insights{}, err
	}

	out := Insights{
		Subject:     subject,
		Composite:   snap.Composite,
		Categories:  make(map[model.FactorCategory]CategoryNote, len(snap.Factors)),
		Suggestions: scoring.Suggestions(snap),
	}
	for c, r := range snap.Factors {
		out.Categories[c] = CategoryNote{Score: r.Score, Weight: r.Weight, Insights: scoring.Insights(c)}
	}

	s.resultsMu.RLock()
	if a, ok := s.results[subject]; ok {
		out.Narrative = a.Narrative
		out.Recommendations = a.Recommendations
	}
	s.resultsMu.RUnlock()
	return out, nil
}

func (s *Service) recordResult(_ context.Context, job workerpool.Job, a model.Assessment) {
	s.resultsMu.Lock()
	s.results[job.Subject] = a
	s.resultsMu.Unlock()
}

// Ready reports collaborator health. It never fails.
func (s *Service) Ready() Readiness {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r := Readiness{CacheEnabled: s.cache != nil}
	if !s.started {
		return r
	}
	r.Inference = s.inference.Name()
	r.InferenceReachable = s.probe.Reachable()
	for _, st := range s.manager.Statuses() {
		r.Sessions++
		if st.State == session.Error {
			r.SessionsInError++
		}
	}
	return r
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.queue.Len(ctx)
		subjects := s.store.Count(ctx)

		stats["queueLength"] = queueLen
		stats["subjects"] = subjects
		stats["sessions"] = s.manager.Count()
		stats["dedupeEntries"] = s.deduper.Size()
		stats["inference"] = s.inference.Name()
		stats["inferenceReachable"] = s.probe.Reachable()

		metrics.UpdateQueueSize(evaluationQueueName, queueLen)
		metrics.UpdateStoreSubjects(subjects)
	}

	return stats
}

// Subjects lists subjects with a stored snapshot.
func (s *Service) Subjects(ctx context.Context) []string {
	if s.running() != nil {
		return nil
	}
	return s.store.Subjects(ctx)
}

// weightTable merges overrides onto the default weights and renormalizes.
func weightTable(overrides map[string]float64) (*scoring.WeightTable, error) {
	if len(overrides) == 0 {
		return nil, nil
	}
	weights := scoring.SourceWeights()
	for name, w := range overrides {
		c, err := model.ParseCategory(name)
		if err != nil {
			return nil, fmt.Errorf("%w: weights: %w", config.ErrInvalidConfig, err)
		}
		weights[c] = w
	}
	t, err := scoring.NewWeightTable(weights, scoring.WithRenormalize())
	if err != nil {
		return nil, fmt.Errorf("%w: weights: %w", config.ErrInvalidConfig, err)
	}
	return t, nil
}
