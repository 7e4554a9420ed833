package analysis

import (
	"time"

	"github.com/okian/yecs/internal/domain/fallback"
	"github.com/okian/yecs/internal/domain/normalize"
	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/pkg/logger"
)

// Option applies a configuration option to the Analyzer.
type Option func(*Analyzer)

// WithTimeout bounds each call to the collaborator.
func WithTimeout(d time.Duration) Option {
	return func(a *Analyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithEngine sets the scoring engine.
func WithEngine(e *scoring.Engine) Option {
	return func(a *Analyzer) {
		if e != nil {
			a.engine = e
		}
	}
}

// WithNormalizer sets the factor normalizer.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(a *Analyzer) {
		if n != nil {
			a.normalizer = n
		}
	}
}

// WithFallback sets the fallback evaluator.
func WithFallback(f *fallback.Evaluator) Option {
	return func(a *Analyzer) {
		if f != nil {
			a.fallback = f
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}
