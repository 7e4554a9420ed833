package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/yecs/internal/session"
	"github.com/okian/yecs/pkg/logger"
)

// supervisor reconnects sessions that fell into Error, backing off
// exponentially with jitter. One goroutine per subject at a time.
type supervisor struct {
	base        time.Duration
	max         time.Duration
	maxAttempts int // <= 0 retries until the session closes
	log         logger.Logger

	mu     sync.Mutex
	ctx    context.Context
	active map[string]struct{}
	wg     sync.WaitGroup
}

func newSupervisor(base, maxDelay time.Duration, maxAttempts int, log logger.Logger) *supervisor {
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	if maxDelay < base {
		maxDelay = base
	}
	return &supervisor{
		base:        base,
		max:         maxDelay,
		maxAttempts: maxAttempts,
		log:         log,
		ctx:         context.Background(),
		active:      make(map[string]struct{}),
	}
}

func (sv *supervisor) start(ctx context.Context) {
	sv.mu.Lock()
	sv.ctx = ctx
	sv.mu.Unlock()
}

// onState is a session.StateHook. It runs on the session loop and must not
// block, so the retry loop runs in its own goroutine.
func (sv *supervisor) onState(sess *session.Session, _, to session.State) {
	if to != session.Error {
		return
	}

	sv.mu.Lock()
	if _, busy := sv.active[sess.Subject()]; busy {
		sv.mu.Unlock()
		return
	}
	sv.active[sess.Subject()] = struct{}{}
	ctx := sv.ctx
	sv.wg.Add(1)
	sv.mu.Unlock()

	go sv.reconnect(ctx, sess)
}

func (sv *supervisor) reconnect(ctx context.Context, sess *session.Session) {
	defer sv.wg.Done()
	defer func() {
		sv.mu.Lock()
		delete(sv.active, sess.Subject())
		sv.mu.Unlock()
	}()

	log := sv.log.With(logger.Subject(sess.Subject()))
	delay := sv.base
	for attempt := 1; sv.maxAttempts <= 0 || attempt <= sv.maxAttempts; attempt++ {
		t := time.NewTimer(jitter(delay))
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-sess.Done():
			t.Stop()
			return
		case <-t.C:
		}

		err := sess.Reconnect(ctx)
		switch {
		case err == nil:
			log.Info(ctx, "session reconnected", logger.Int("attempt", attempt))
			return
		case errors.Is(err, session.ErrClosed), errors.Is(err, session.ErrInvalidState):
			return
		case ctx.Err() != nil:
			return
		}

		log.Warn(ctx, "reconnect failed",
			logger.Int("attempt", attempt),
			logger.Duration("next_delay", delay),
			logger.Error(err),
		)
		delay = min(delay*2, sv.max)
	}

	log.Error(ctx, "giving up on reconnect", logger.Int("attempts", sv.maxAttempts))
}

// wait blocks until every retry loop has returned.
func (sv *supervisor) wait() {
	sv.wg.Wait()
}

// jitter spreads d over [d/2, d).
func jitter(d time.Duration) time.Duration {
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + rand.N(half)
}
