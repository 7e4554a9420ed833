package scoring

import (
	"fmt"

	"github.com/okian/yecs/internal/domain/model"
)

// Suggestion thresholds.
const (
	weakCategoryScore      = 70
	weakSuccessProbability = 0.7
	weakFundingReadiness   = 0.6
)

var categoryInsights = map[model.FactorCategory][]string{ //nolint:gochecknoglobals // static advice table
	model.Financial: {
		"Maintain consistent income streams",
		"Improve cash flow management",
		"Build emergency fund reserves",
		"Optimize debt-to-income ratio",
	},
	model.Business: {
		"Strengthen business plan documentation",
		"Conduct thorough market analysis",
		"Build experienced advisory team",
		"Demonstrate market traction",
	},
	model.Entrepreneurial: {
		"Showcase innovation and creativity",
		"Validate market demand",
		"Build customer acquisition channels",
		"Demonstrate leadership capabilities",
	},
	model.Behavioral: {
		"Maintain consistent spending patterns",
		"Show financial discipline",
		"Diversify income sources",
		"Build investment portfolio",
	},
}

// Insights returns static advice for a category. Categories without advice
// return nil.
func Insights(c model.FactorCategory) []string {
	src := categoryInsights[c]
	if src == nil {
		return nil
	}
	return append([]string(nil), src...)
}

// Suggestions lists improvement suggestions for a snapshot: one per weak
// category in canonical order, then prediction-driven advice.
func Suggestions(s model.ScoreSnapshot) []string {
	var out []string
	for _, c := range model.AllCategories {
		r, ok := s.Factors[c]
		if ok && r.Score < weakCategoryScore {
			out = append(out, fmt.Sprintf("Focus on improving %s score by 10+ points", c))
		}
	}
	if s.Predictions.SuccessProbability < weakSuccessProbability {
		out = append(out, "Strengthen business fundamentals to improve success probability")
	}
	if s.Predictions.FundingReadiness < weakFundingReadiness {
		out = append(out, "Prepare comprehensive funding documentation")
	}
	return out
}
