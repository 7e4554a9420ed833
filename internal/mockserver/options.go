package mockserver

import (
	"time"

	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/pkg/logger"
)

// Option configures a Server.
type Option func(*Server)

// WithEngine sets the engine that scores mock subjects.
func WithEngine(e *scoring.Engine) Option {
	return func(s *Server) {
		if e != nil {
			s.engine = e
		}
	}
}

// WithJitter sets the maximum per-category drift applied on refresh.
func WithJitter(points float64) Option {
	return func(s *Server) {
		if points >= 0 {
			s.jitter = points
		}
	}
}

// WithPushInterval makes the server push a drifted snapshot to every
// connection on this period. Zero disables it.
func WithPushInterval(d time.Duration) Option {
	return func(s *Server) {
		if d >= 0 {
			s.pushInterval = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Server) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger overrides the server logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}
