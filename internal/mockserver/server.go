// Package mockserver is a stand-in authoritative score server for offline
// and development use. It speaks the same channel protocol as production.
package mockserver

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/okian/yecs/internal/adapters/ws"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/pkg/logger"
)

const (
	defaultJitter     = 3.0
	randomDivisor     = 1_000_000
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

type subject struct {
	factors model.Factors
	last    *model.ScoreSnapshot
}

// Server holds one factor set per subject and pushes scored snapshots.
type Server struct {
	engine       *scoring.Engine
	jitter       float64
	pushInterval time.Duration
	clock        func() time.Time
	log          logger.Logger

	mu       sync.Mutex
	subjects map[string]*subject
}

// New creates a mock server.
func New(opts ...Option) *Server {
	s := &Server{
		engine:   scoring.NewEngine(nil),
		jitter:   defaultJitter,
		clock:    time.Now,
		log:      logger.Get().Named("mockserver"),
		subjects: make(map[string]*subject),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler serves the channel on /ws.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/ws", s.serveWS)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)
	return r
}

// Run listens on addr until ctx is done.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "mock server listening", logger.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(sctx)
}

// Snapshot scores subject's current factors without pushing anything.
func (s *Server) Snapshot(id string) (model.ScoreSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scoreLocked(id, s.clock())
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Upgrade(w, r, ws.WithLogger(s.log))
	if err != nil {
		s.log.Warn(r.Context(), "upgrade failed", logger.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx := r.Context()
	var id string

	var tick <-chan time.Time
	if s.pushInterval > 0 {
		t := time.NewTicker(s.pushInterval)
		defer t.Stop()
		tick = t.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-conn.Frames():
			if !ok {
				return
			}
			if next, err := s.handle(ctx, conn, id, env); err != nil {
				s.log.Warn(ctx, "frame rejected", logger.String("event", env.Event), logger.Error(err))
				_ = conn.Send(ctx, ws.EventScoreError, ws.ErrorPayload{Message: err.Error()})
			} else {
				id = next
			}
		case <-tick:
			if id != "" {
				_ = s.push(ctx, conn, id, s.drift)
			}
		}
	}
}

// handle processes one frame and returns the connection's subject.
func (s *Server) handle(ctx context.Context, conn *ws.Conn, id string, env ws.Envelope) (string, error) {
	switch env.Event {
	case ws.EventSubscribe:
		var p ws.SubjectPayload
		if err := env.Decode(&p); err != nil {
			return id, err
		}
		if p.UserID == "" {
			return id, errors.New("userId is required")
		}
		s.log.Debug(ctx, "subscribed", logger.Subject(p.UserID))
		return p.UserID, s.push(ctx, conn, p.UserID, nil)

	case ws.EventRefresh:
		if id == "" {
			return id, errors.New("not subscribed")
		}
		return id, s.push(ctx, conn, id, s.drift)

	case ws.EventUpdate:
		if id == "" {
			return id, errors.New("not subscribed")
		}
		var p ws.UpdatePayload
		if err := env.Decode(&p); err != nil {
			return id, err
		}
		edit := func(f model.Factors) {
			for c, r := range p.Factors {
				if c.Valid() {
					f[c] = r.Clone()
				}
			}
		}
		return id, s.pushAt(ctx, conn, id, edit, p.At)

	default:
		return id, fmt.Errorf("unknown event %q", env.Event)
	}
}

func (s *Server) push(ctx context.Context, conn *ws.Conn, id string, mutate func(model.Factors)) error {
	return s.pushAt(ctx, conn, id, mutate, time.Time{})
}

// pushAt scores id after mutate and sends it. The snapshot is stamped no
// earlier than notBefore so it confirms the edit that caused it.
func (s *Server) pushAt(ctx context.Context, conn *ws.Conn, id string, mutate func(model.Factors), notBefore time.Time) error {
	s.mu.Lock()
	st := s.subjectLocked(id)
	if mutate != nil {
		mutate(st.factors)
	}
	at := s.clock()
	if notBefore.After(at) {
		at = notBefore
	}
	snap, err := s.scoreLocked(id, at)
	s.mu.Unlock()
	if err != nil {
		return err
	}

	payload := struct {
		model.ScoreSnapshot
		UserID string `json:"user_id"`
	}{snap, id}
	return conn.Send(ctx, ws.EventAdvancedUpdated, payload)
}

func (s *Server) subjectLocked(id string) *subject {
	st, ok := s.subjects[id]
	if !ok {
		st = &subject{factors: Factors()}
		s.subjects[id] = st
	}
	return st
}

func (s *Server) scoreLocked(id string, at time.Time) (model.ScoreSnapshot, error) {
	st := s.subjectLocked(id)
	snap, err := s.engine.Compute(st.factors.Clone(), Industry())
	if err != nil {
		return model.ScoreSnapshot{}, err
	}
	snap.Subject = id
	snap.Source = model.SourceAuthoritative
	snap.NextRefreshAt = at.Add(snap.NextRefreshAt.Sub(snap.GeneratedAt))
	snap.GeneratedAt = at
	snap = scoring.ApplyTrend(st.last, snap)
	last := snap.Clone()
	st.last = &last
	return snap, nil
}

// drift moves every category score by up to ±jitter points.
func (s *Server) drift(f model.Factors) {
	for c, r := range f {
		r.Score = scoring.ClampScore(r.Score + (randomFloat()*2-1)*s.jitter)
		f[c] = r
	}
}

// randomFloat returns a value in [0,1) using crypto/rand.
func randomFloat() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(randomDivisor))
	if err != nil {
		return 0.5
	}
	return float64(n.Int64()) / randomDivisor
}
