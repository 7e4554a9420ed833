// Package scoring turns per-category results into a bounded composite score,
// risk tier and letter grade.
package scoring

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/yecs/internal/domain/model"
)

// Scoring constants.
const (
	maxCategoryScore   = 100
	marketAdjustment   = 0.1
	compositeSpan      = model.MaxComposite - model.MinComposite
	compositePerPoint  = float64(compositeSpan) / maxCategoryScore
	marketPercentScale = 100
)

// Engine computes snapshots from factor results. It is safe for concurrent use.
type Engine struct {
	table           *WeightTable
	clock           func() time.Time
	refreshInterval time.Duration
}

// NewEngine creates an engine over table. A nil table uses DefaultWeights.
func NewEngine(table *WeightTable, opts ...Option) *Engine {
	if table == nil {
		table = DefaultWeights()
	}
	e := &Engine{
		table:           table,
		clock:           time.Now,
		refreshInterval: defaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Weights returns the engine's weight table.
func (e *Engine) Weights() *WeightTable { return e.table }

// Compute produces a primary snapshot from factors. Every category must be
// present.
func (e *Engine) Compute(factors model.Factors, industry model.IndustryContext) (model.ScoreSnapshot, error) {
	now := e.clock()
	snap := model.ScoreSnapshot{
		Factors:       factors,
		Industry:      industry,
		GeneratedAt:   now,
		NextRefreshAt: now.Add(e.refreshInterval),
		Source:        model.SourcePrimary,
	}
	return e.Recompute(snap)
}

// Recompute re-derives composite, tier, grade and predictions from the
// snapshot's factors and industry context. Timestamps and source are kept.
func (e *Engine) Recompute(snap model.ScoreSnapshot) (model.ScoreSnapshot, error) {
	if missing := snap.Factors.Missing(); len(missing) > 0 {
		return model.ScoreSnapshot{}, fmt.Errorf("%w: missing categories %s", ErrInvalidFactorInput, joinCategories(missing))
	}

	out := snap.Clone()
	for c, r := range out.Factors {
		if !c.Valid() {
			return model.ScoreSnapshot{}, fmt.Errorf("%w: unknown category %q", ErrInvalidFactorInput, c)
		}
		r.Score = ClampScore(r.Score)
		r.Weight = e.table.Weight(c)
		out.Factors[c] = r
	}

	out.Composite = e.composite(out.Factors, out.Industry)
	out.RiskTier = RiskTierFor(out.Composite)
	out.Grade = GradeFor(out.Composite)
	out.Predictions = DerivePredictions(out.Composite, out.Factors, out.Industry)
	return out, nil
}

// Composite returns only the composite for factors.
func (e *Engine) Composite(factors model.Factors, industry model.IndustryContext) (int, error) {
	if missing := factors.Missing(); len(missing) > 0 {
		return 0, fmt.Errorf("%w: missing categories %s", ErrInvalidFactorInput, joinCategories(missing))
	}
	return e.composite(factors, industry), nil
}

func (e *Engine) composite(factors model.Factors, industry model.IndustryContext) int {
	var weighted float64
	for _, c := range model.AllCategories {
		weighted += ClampScore(factors[c].Score) * e.table.Weight(c)
	}
	adjusted := weighted * (1 + MarketConditions(industry.MarketConditions)*marketAdjustment)
	return ClampComposite(math.Round(model.MinComposite + adjusted*compositePerPoint))
}

// MarketConditions normalizes a market conditions value into [0,1]. Values
// above 1 are percentages.
func MarketConditions(v float64) float64 {
	if v > 1 {
		v /= marketPercentScale
	}
	return clamp(v, 0, 1)
}

// ClampScore bounds a category score to [0,100]. NaN maps to 0.
func ClampScore(v float64) float64 {
	return clamp(v, 0, maxCategoryScore)
}

// ClampComposite bounds a raw composite to the published range.
func ClampComposite(v float64) int {
	return int(clamp(v, model.MinComposite, model.MaxComposite))
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case math.IsNaN(v):
		return lo
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

func joinCategories(cs []model.FactorCategory) string {
	names := make([]string, len(cs))
	for i, c := range cs {
		names[i] = string(c)
	}
	return strings.Join(names, ",")
}
