package scoring

import "time"

// Default engine configuration constants.
const (
	defaultRefreshInterval = 24 * time.Hour
)

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock replaces time.Now for GeneratedAt stamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRefreshInterval sets the gap between GeneratedAt and NextRefreshAt.
func WithRefreshInterval(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.refreshInterval = d
		}
	}
}
