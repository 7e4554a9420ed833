package scoring

import (
	"fmt"
	"math"

	"github.com/okian/yecs/internal/domain/model"
)

// weightSumTolerance is the allowed distance of the weight sum from 1.
const weightSumTolerance = 0.001

// SourceWeights is the entrepreneurial weighting scheme as originally
// published. It sums to 1.35 and must be renormalized before use.
func SourceWeights() map[model.FactorCategory]float64 {
	return map[model.FactorCategory]float64{
		model.Financial:       0.25,
		model.Credit:          0.15,
		model.Identity:        0.10,
		model.Business:        0.30,
		model.Social:          0.10,
		model.Behavioral:      0.05,
		model.Entrepreneurial: 0.25,
		model.Education:       0.15,
	}
}

// WeightTable holds one validated weight per category. Weights sum to 1.
type WeightTable struct {
	weights map[model.FactorCategory]float64
}

// WeightOption configures NewWeightTable.
type WeightOption func(*weightConfig)

type weightConfig struct {
	renormalize bool
}

// WithRenormalize rescales the weights to sum to 1 instead of rejecting them.
func WithRenormalize() WeightOption {
	return func(c *weightConfig) { c.renormalize = true }
}

// NewWeightTable validates weights and returns an immutable table.
func NewWeightTable(weights map[model.FactorCategory]float64, opts ...WeightOption) (*WeightTable, error) {
	var cfg weightConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	for c := range weights {
		if !c.Valid() {
			return nil, fmt.Errorf("%w: unknown category %q", ErrInvalidFactorInput, c)
		}
	}

	table := make(map[model.FactorCategory]float64, len(model.AllCategories))
	var sum float64
	for _, c := range model.AllCategories {
		w, ok := weights[c]
		if !ok {
			return nil, fmt.Errorf("%w: missing weight for %s", ErrInvalidFactorInput, c)
		}
		if !(w > 0) || math.IsInf(w, 0) {
			return nil, fmt.Errorf("%w: weight for %s must be positive, got %v", ErrInvalidFactorInput, c, w)
		}
		table[c] = w
		sum += w
	}

	if math.Abs(sum-1) > weightSumTolerance {
		if !cfg.renormalize {
			return nil, fmt.Errorf("%w: weights sum to %.3f, want 1", ErrInvalidFactorInput, sum)
		}
		for c, w := range table {
			table[c] = w / sum
		}
	}

	return &WeightTable{weights: table}, nil
}

// DefaultWeights returns SourceWeights renormalized to sum to 1.
func DefaultWeights() *WeightTable {
	t, err := NewWeightTable(SourceWeights(), WithRenormalize())
	if err != nil {
		panic(err) // static table
	}
	return t
}

// Weight returns the weight for c, or 0 for an unknown category.
func (t *WeightTable) Weight(c model.FactorCategory) float64 {
	return t.weights[c]
}

// Map returns a copy of the table.
func (t *WeightTable) Map() map[model.FactorCategory]float64 {
	out := make(map[model.FactorCategory]float64, len(t.weights))
	for c, w := range t.weights {
		out[c] = w
	}
	return out
}
