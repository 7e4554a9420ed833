package normalize

import "github.com/okian/yecs/internal/domain/scoring"

// Option applies a configuration option to the Normalizer.
type Option func(*Normalizer)

// WithIdealAgeBand sets the age band that earns the full age bonus.
func WithIdealAgeBand(minAge, maxAge int) Option {
	return func(n *Normalizer) {
		if minAge > 0 && maxAge >= minAge {
			n.idealAgeMin = minAge
			n.idealAgeMax = maxAge
		}
	}
}

// WithWeights sets the weight table copied into each category result.
func WithWeights(t *scoring.WeightTable) Option {
	return func(n *Normalizer) {
		if t != nil {
			n.weights = t
		}
	}
}
