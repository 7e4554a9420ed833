// Package normalize maps raw profile attributes onto per-category results in
// [0,100]. Every mapping is a pure function with fixed breakpoints.
package normalize

import (
	"strings"

	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/scoring"
)

// Breakpoints and scales.
const (
	neutralScore = 50

	incomeCeiling       = 150_000
	tenYearScale        = 10
	bankingYearPoints   = 10
	businessYearPoints  = 20
	basePointsMax       = 150
	idealRiskTolerance  = 7
	riskTolerancePoints = 10
	ageRampBelow        = 15
	ageRampAbove        = 25
	githubPoints        = 30
	socialMediaPoints   = 20
	freelancePoints     = 25
	coursePoints        = 5

	defaultIdealAgeMin = 25
	defaultIdealAgeMax = 35
)

var businessStagePoints = map[string]float64{ //nolint:gochecknoglobals // breakpoint table
	"idea":      30,
	"prototype": 60,
	"mvp":       90,
	"revenue":   120,
	"scaling":   150,
}

var educationPoints = map[string]float64{ //nolint:gochecknoglobals // breakpoint table
	"high_school": 50,
	"self_taught": 70,
	"bootcamp":    90,
	"bachelors":   100,
	"masters":     130,
	"phd":         150,
}

var homeOwnershipScores = map[string]float64{ //nolint:gochecknoglobals // breakpoint table
	model.HomeOwn:      100,
	model.HomeMortgage: 80,
	model.HomeRent:     50,
}

// Normalizer converts profiles into factor results.
type Normalizer struct {
	idealAgeMin int
	idealAgeMax int
	weights     *scoring.WeightTable
}

// New creates a Normalizer with the default age band and weights.
func New(opts ...Option) *Normalizer {
	n := &Normalizer{
		idealAgeMin: defaultIdealAgeMin,
		idealAgeMax: defaultIdealAgeMax,
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.weights == nil {
		n.weights = scoring.DefaultWeights()
	}
	return n
}

// Normalize produces a result for every category.
func (n *Normalizer) Normalize(p model.Profile) model.Factors {
	digital := DigitalPresence(p.Digital)
	stage := BusinessStage(p.BusinessStage)
	risk := RiskTolerance(p.RiskTolerance)
	employment := Years(p.EmploymentYears, tenYearScale)

	subs := map[model.FactorCategory]map[string]float64{
		model.Financial: {
			"income":         Income(p.AnnualIncome),
			"debt_to_income": DebtToIncome(p.LoanAmount, p.AnnualIncome),
			"home_ownership": HomeOwnership(p.HomeOwnership),
		},
		model.Credit: {
			"credit_history":  Years(p.CreditHistoryYears, tenYearScale),
			"banking_history": clamp(p.BankingHistoryYears * bankingYearPoints),
		},
		model.Identity: {
			"profile_completeness": Completeness(p),
			"digital_footprint":    digital,
		},
		model.Business: {
			"business_stage":      stage,
			"business_experience": clamp(p.BusinessExperienceYears * businessYearPoints),
		},
		model.Social: {
			"digital_presence": digital,
		},
		model.Behavioral: {
			"risk_tolerance":       risk,
			"employment_stability": employment,
		},
		model.Entrepreneurial: {
			"age_bonus":      n.AgeBonus(p.Age),
			"risk_tolerance": risk,
			"business_stage": stage,
		},
		model.Education: {
			"education_level": EducationLevel(p.Education),
		},
	}

	out := make(model.Factors, len(subs))
	for c, metrics := range subs {
		out[c] = model.CategoryResult{
			Score:      mean(metrics),
			SubMetrics: metrics,
			Weight:     n.weights.Weight(c),
		}
	}
	return out
}

// AgeBonus is 100 inside the ideal band, ramps linearly to 0 at 15 years
// below and 25 years above it, and is neutral for a missing age.
func (n *Normalizer) AgeBonus(age int) float64 {
	if age <= 0 {
		return neutralScore
	}
	a := float64(age)
	lo, hi := float64(n.idealAgeMin), float64(n.idealAgeMax)
	switch {
	case a >= lo && a <= hi:
		return 100
	case a < lo:
		return clamp((a - (lo - ageRampBelow)) / ageRampBelow * 100)
	default:
		return clamp(((hi + ageRampAbove) - a) / ageRampAbove * 100)
	}
}

// Income scores annual income against a 150k ceiling.
func Income(annual float64) float64 {
	return clamp(annual / incomeCeiling * 100)
}

// Years scores a tenure against the number of years that earns full credit.
func Years(years, full float64) float64 {
	return clamp(years / full * 100)
}

// DebtToIncome is 100 minus the loan-to-income ratio in percent. Missing
// income is neutral.
func DebtToIncome(loan, income float64) float64 {
	if income <= 0 {
		return neutralScore
	}
	return clamp(100 - loan/income*100)
}

// HomeOwnership scores own, mortgage and rent. Anything else is neutral.
func HomeOwnership(v string) float64 {
	if s, ok := homeOwnershipScores[strings.ToUpper(strings.TrimSpace(v))]; ok {
		return s
	}
	return neutralScore
}

// BusinessStage maps a stage to its base points scaled into [0,100].
// Unknown stages score 0.
func BusinessStage(stage string) float64 {
	return clamp(businessStagePoints[key(stage)] * 100 / basePointsMax)
}

// EducationLevel maps an education level to its base points scaled into
// [0,100]. Unknown levels score 0.
func EducationLevel(level string) float64 {
	return clamp(educationPoints[key(level)] * 100 / basePointsMax)
}

// RiskTolerance peaks at 7 on a 1-10 scale. Missing is neutral.
func RiskTolerance(rt int) float64 {
	if rt <= 0 {
		return neutralScore
	}
	return clamp(float64(riskTolerancePoints-abs(rt-idealRiskTolerance)) * riskTolerancePoints)
}

// DigitalPresence sums points for each presence flag.
func DigitalPresence(d model.DigitalPresence) float64 {
	var pts float64
	if d.GitHub {
		pts += githubPoints
	}
	if d.BusinessSocialMedia {
		pts += socialMediaPoints
	}
	if d.Freelance {
		pts += freelancePoints
	}
	pts += float64(d.OnlineCourses) * coursePoints
	return clamp(pts)
}

// Completeness is the share of core attributes the subject provided.
func Completeness(p model.Profile) float64 {
	provided := []bool{
		p.Age > 0,
		p.AnnualIncome > 0,
		p.EmploymentYears > 0,
		p.HomeOwnership != "",
		p.CreditHistoryYears > 0,
		p.Education != "",
		p.Industry != "",
		p.BusinessStage != "",
	}
	var n float64
	for _, ok := range provided {
		if ok {
			n++
		}
	}
	return clamp(n / float64(len(provided)) * 100)
}

func key(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer("-", "_", " ", "_", "'", "").Replace(s)
}

func mean(metrics map[string]float64) float64 {
	if len(metrics) == 0 {
		return 0
	}
	var sum float64
	for _, v := range metrics {
		sum += v
	}
	return clamp(sum / float64(len(metrics)))
}

func clamp(v float64) float64 {
	return scoring.ClampScore(v)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
