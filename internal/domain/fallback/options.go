package fallback

import (
	"time"

	"github.com/okian/yecs/internal/domain/normalize"
)

// Option applies a configuration option to the Evaluator.
type Option func(*Evaluator)

// WithNormalizer sets the normalizer used to fill the category breakdown.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(e *Evaluator) {
		if n != nil {
			e.normalizer = n
		}
	}
}

// WithClock replaces time.Now for GeneratedAt stamps.
func WithClock(clock func() time.Time) Option {
	return func(e *Evaluator) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// WithRefreshInterval sets the gap between GeneratedAt and NextRefreshAt.
func WithRefreshInterval(d time.Duration) Option {
	return func(e *Evaluator) {
		if d > 0 {
			e.refreshInterval = d
		}
	}
}
