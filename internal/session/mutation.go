package session

import (
	"fmt"
	"maps"
	"time"

	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/scoring"
)

// Mutation is a local edit of one category.
type Mutation struct {
	EditID     string
	Category   model.FactorCategory
	Score      float64
	SubMetrics map[string]float64
	// At becomes the optimistic snapshot's GeneratedAt. Zero means now.
	At time.Time

	result model.CategoryResult
}

// apply returns cur with the edited category, rescored by engine.
func (m Mutation) apply(engine *scoring.Engine, cur model.ScoreSnapshot) (model.ScoreSnapshot, error) {
	if !m.Category.Valid() {
		return model.ScoreSnapshot{}, fmt.Errorf("%w: %q", model.ErrUnknownCategory, m.Category)
	}

	next := cur.Clone()
	if next.Factors == nil {
		next.Factors = model.Factors{}
	}
	r := next.Factors[m.Category]
	r.Score = m.Score
	if m.SubMetrics != nil {
		r.SubMetrics = maps.Clone(m.SubMetrics)
	}
	next.Factors[m.Category] = r

	next, err := engine.Recompute(next)
	if err != nil {
		return model.ScoreSnapshot{}, err
	}
	next.Source = model.SourceOptimistic
	next.GeneratedAt = m.At
	next.EditID = m.EditID
	return next, nil
}
