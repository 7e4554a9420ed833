// Package fallback is the deterministic evaluator used whenever the inference
// collaborator cannot produce a usable result.
package fallback

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/normalize"
	"github.com/okian/yecs/internal/domain/scoring"
)

// Reduced factor multipliers. Each is the factor's share of the 550 point
// span divided by 100, e.g. income 30% -> 1.65.
const (
	incomeMultiplier     = 1.65
	ageMultiplier        = 0.825
	employmentMultiplier = 1.1
	homeMultiplier       = 0.55
	creditMultiplier     = 0.825
	businessMultiplier   = 0.55

	prefAgeMin = 25
	prefAgeMax = 45

	premiumBand = 700
	goodBand    = 600

	defaultRefreshInterval = 24 * time.Hour
)

// Evaluator computes assessments without external calls.
type Evaluator struct {
	normalizer      *normalize.Normalizer
	clock           func() time.Time
	refreshInterval time.Duration
}

// New creates an Evaluator.
func New(opts ...Option) *Evaluator {
	e := &Evaluator{
		clock:           time.Now,
		refreshInterval: defaultRefreshInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.normalizer == nil {
		e.normalizer = normalize.New()
	}
	return e
}

// Evaluate never fails. Missing attributes score as documented neutral values.
func (e *Evaluator) Evaluate(p model.Profile) model.Assessment {
	composite := Composite(p)
	now := e.clock()

	factors := e.normalizer.Normalize(p)
	industry := p.IndustryContext()
	snap := model.ScoreSnapshot{
		Composite:     composite,
		RiskTier:      scoring.RiskTierFor(composite),
		Grade:         scoring.GradeFor(composite),
		Factors:       factors,
		Industry:      industry,
		Predictions:   scoring.DerivePredictions(composite, factors, industry),
		Trend:         model.Trend{Consistency: 1},
		GeneratedAt:   now,
		NextRefreshAt: now.Add(e.refreshInterval),
		Source:        model.SourceFallback,
	}

	return model.Assessment{
		Snapshot:        snap,
		Narrative:       Narrative(composite),
		Recommendations: scoring.Suggestions(snap),
	}
}

// Composite is the reduced-factor composite: income 30%, age 15%,
// employment 20%, home ownership 10%, credit history 15%, business
// experience 10%, on top of the 300 floor.
func Composite(p model.Profile) int {
	score := float64(model.MinComposite)
	score += normalize.Income(p.AnnualIncome) * incomeMultiplier
	score += ageScore(p.Age) * ageMultiplier
	score += normalize.Years(p.EmploymentYears, 10) * employmentMultiplier
	score += homeScore(p.HomeOwnership) * homeMultiplier
	score += normalize.Years(p.CreditHistoryYears, 10) * creditMultiplier
	score += businessScore(p.BusinessExperienceYears) * businessMultiplier
	return scoring.ClampComposite(math.Round(score))
}

// Narrative returns the canned explanation for a composite.
func Narrative(composite int) string {
	var outlook string
	switch {
	case composite >= premiumBand:
		outlook = "You qualify for premium business financing options."
	case composite >= goodBand:
		outlook = "You have good prospects for business financing with moderate terms."
	default:
		outlook = "Consider improving your credit profile and business plan before applying for loans."
	}
	return fmt.Sprintf("Based on comprehensive analysis of your entrepreneurial profile, your YECS score is %d. "+
		"This score considers your income stability, business experience, credit history, and entrepreneurial potential. %s",
		composite, outlook)
}

func ageScore(age int) float64 {
	if age >= prefAgeMin && age <= prefAgeMax {
		return 100
	}
	return 70
}

// homeScore differs from the normalizer: anything that is neither owned nor
// mortgaged scores 50.
func homeScore(v string) float64 {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case model.HomeOwn:
		return 100
	case model.HomeMortgage:
		return 80
	default:
		return 50
	}
}

func businessScore(years float64) float64 {
	switch {
	case years > 2:
		return 90
	case years > 0:
		return 70
	default:
		return 40
	}
}
