// Package model contains domain models passed between layers.
package model

import (
	"fmt"
	"maps"
	"strings"
)

// FactorCategory names one weighted dimension of the composite score.
type FactorCategory string

// The eight scoring categories.
const (
	Financial       FactorCategory = "financial"
	Credit          FactorCategory = "credit"
	Identity        FactorCategory = "identity"
	Business        FactorCategory = "business"
	Social          FactorCategory = "social"
	Behavioral      FactorCategory = "behavioral"
	Entrepreneurial FactorCategory = "entrepreneurial"
	Education       FactorCategory = "education"
)

// AllCategories lists every category in canonical order.
var AllCategories = []FactorCategory{ //nolint:gochecknoglobals // fixed enumeration
	Financial, Credit, Identity, Business, Social, Behavioral, Entrepreneurial, Education,
}

// Valid reports whether c is one of the eight categories.
func (c FactorCategory) Valid() bool {
	for _, known := range AllCategories {
		if c == known {
			return true
		}
	}
	return false
}

// ParseCategory converts user input such as "Financial" into a FactorCategory.
func ParseCategory(s string) (FactorCategory, error) {
	c := FactorCategory(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
	}
	return c, nil
}

// CategoryResult is the normalized outcome for one category.
type CategoryResult struct {
	// Score is in [0,100].
	Score float64 `json:"score"`
	// SubMetrics are named inputs to Score, each in [0,100].
	SubMetrics map[string]float64 `json:"sub_metrics,omitempty"`
	// Weight is the category weight in (0,1].
	Weight float64 `json:"weight"`
}

// Clone returns a deep copy.
func (r CategoryResult) Clone() CategoryResult {
	out := r
	if r.SubMetrics != nil {
		out.SubMetrics = maps.Clone(r.SubMetrics)
	}
	return out
}

// Factors maps each category to its result.
type Factors map[FactorCategory]CategoryResult

// Clone returns a deep copy.
func (f Factors) Clone() Factors {
	if f == nil {
		return nil
	}
	out := make(Factors, len(f))
	for k, v := range f {
		out[k] = v.Clone()
	}
	return out
}

// Missing returns the categories absent from f, in canonical order.
func (f Factors) Missing() []FactorCategory {
	var missing []FactorCategory
	for _, c := range AllCategories {
		if _, ok := f[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}
