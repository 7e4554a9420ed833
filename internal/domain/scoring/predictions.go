package scoring

import (
	"math"

	"github.com/okian/yecs/internal/domain/model"
)

// DerivePredictions computes the forward-looking probabilities from the
// composite and the factor scores. Every value is in [0,1] and none decreases
// when the composite or a factor score increases, except DefaultRisk which
// moves the other way.
func DerivePredictions(composite int, factors model.Factors, industry model.IndustryContext) model.Predictions {
	norm := float64(composite-model.MinComposite) / compositeSpan
	f := func(c model.FactorCategory) float64 { return ClampScore(factors[c].Score) / maxCategoryScore }
	market := MarketConditions(industry.MarketConditions)

	return model.Predictions{
		SuccessProbability: unit(0.5*norm + 0.25*f(model.Business) + 0.25*f(model.Entrepreneurial)),
		DefaultRisk:        unit(1 - (0.6*norm + 0.2*f(model.Financial) + 0.2*f(model.Credit))),
		GrowthPotential:    unit((f(model.Entrepreneurial) + f(model.Business) + f(model.Education)) / 3 * (1 + market*marketAdjustment)),
		FundingReadiness:   unit(0.5*norm + 0.25*f(model.Financial) + 0.25*f(model.Credit)),
		MarketFit:          unit(0.6*f(model.Business) + 0.4*f(model.Social)),
	}
}

// unit clamps to [0,1] and rounds to two decimals.
func unit(v float64) float64 {
	return math.Round(clamp(v, 0, 1)*100) / 100
}
