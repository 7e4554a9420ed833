package session

import (
	"time"

	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/pkg/logger"
	"golang.org/x/time/rate"
)

const (
	defaultAckTimeout      = 5 * time.Second
	defaultRefreshInterval = 24 * time.Hour
	defaultRefreshRate     = rate.Limit(0.2)
	defaultRefreshBurst    = 1
	updatesBuffer          = 1
)

// StateHook observes state transitions. It runs on the session loop and
// must not block.
type StateHook func(s *Session, from, to State)

type settings struct {
	engine          *scoring.Engine
	ackTimeout      time.Duration
	refreshInterval time.Duration
	refreshRate     rate.Limit
	refreshBurst    int
	clock           func() time.Time
	newEditID       func() string
	hook            StateHook
	log             logger.Logger
}

// Option configures sessions and the manager that creates them.
type Option func(*settings)

// WithEngine sets the engine used to rescore optimistic edits.
func WithEngine(e *scoring.Engine) Option {
	return func(s *settings) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithAckTimeout bounds how long an edit stays in flight unconfirmed.
func WithAckTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.ackTimeout = d
		}
	}
}

// WithRefreshInterval sets how often a connected session asks for a fresh
// snapshot on its own.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.refreshInterval = d
		}
	}
}

// WithRefreshLimit throttles explicit refresh requests.
func WithRefreshLimit(perSecond float64, burst int) Option {
	return func(s *settings) {
		if perSecond > 0 {
			s.refreshRate = rate.Limit(perSecond)
		}
		if burst > 0 {
			s.refreshBurst = burst
		}
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *settings) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithEditIDs overrides edit id generation.
func WithEditIDs(gen func() string) Option {
	return func(s *settings) {
		if gen != nil {
			s.newEditID = gen
		}
	}
}

// WithStateHook registers a transition observer.
func WithStateHook(h StateHook) Option {
	return func(s *settings) {
		s.hook = h
	}
}

// WithLogger overrides the session logger.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}
