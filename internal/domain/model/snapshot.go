package model

import "time"

// Source records which path produced a snapshot.
type Source string

const (
	SourcePrimary       Source = "primary"
	SourceFallback      Source = "fallback"
	SourceAuthoritative Source = "authoritative"
	SourceOptimistic    Source = "optimistic"
	SourceCached        Source = "cached"
)

// RiskTier is the coarse bucket derived from the composite.
type RiskTier string

const (
	RiskLow    RiskTier = "low"
	RiskMedium RiskTier = "medium"
	RiskHigh   RiskTier = "high"
)

// Grade is a letter grade derived from the composite.
type Grade string

// Published composite bounds.
const (
	MinComposite = 300
	MaxComposite = 850
)

// Predictions are forward-looking probabilities, each in [0,1].
type Predictions struct {
	SuccessProbability float64 `json:"success_probability"`
	DefaultRisk        float64 `json:"default_risk"`
	GrowthPotential    float64 `json:"growth_potential"`
	FundingReadiness   float64 `json:"funding_readiness"`
	MarketFit          float64 `json:"market_fit_score"`
}

// Trend summarizes recent movement of the composite.
type Trend struct {
	Delta30     int     `json:"score_change_30d"`
	Delta90     int     `json:"score_change_90d"`
	Consistency float64 `json:"consistency_score"`
}

// IndustryContext carries the market adjustment inputs.
type IndustryContext struct {
	Industry string `json:"industry,omitempty"`
	// MarketConditions is in [0,1]. Values above 1 are read as a percentage.
	MarketConditions float64 `json:"market_conditions"`
	SectorGrowth     float64 `json:"sector_growth,omitempty"`
	Competition      float64 `json:"competition_level,omitempty"`
}

// ScoreSnapshot is the value produced by one scoring pass. Treat it as
// immutable: stores and sessions hand out clones.
type ScoreSnapshot struct {
	Subject       string          `json:"subject,omitempty"`
	Composite     int             `json:"score"`
	RiskTier      RiskTier        `json:"riskLevel"`
	Grade         Grade           `json:"creditGrade"`
	Factors       Factors         `json:"factors"`
	Industry      IndustryContext `json:"industryContext"`
	Predictions   Predictions     `json:"predictions"`
	Trend         Trend           `json:"trends"`
	GeneratedAt   time.Time       `json:"lastUpdated"`
	NextRefreshAt time.Time       `json:"nextUpdate"`
	Source        Source          `json:"source,omitempty"`
	// EditID is set only on optimistic snapshots.
	EditID string `json:"editId,omitempty"`
}

// Clone returns a deep copy.
func (s ScoreSnapshot) Clone() ScoreSnapshot {
	out := s
	out.Factors = s.Factors.Clone()
	return out
}

// NewerThan reports whether s was generated strictly after other.
func (s ScoreSnapshot) NewerThan(other ScoreSnapshot) bool {
	return s.GeneratedAt.After(other.GeneratedAt)
}
