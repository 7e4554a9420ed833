package scoring

import "github.com/okian/yecs/internal/domain/model"

// Risk tier thresholds.
const (
	lowRiskMin    = 750
	mediumRiskMin = 650
)

var gradeTable = []struct { //nolint:gochecknoglobals // fixed threshold table
	min   int
	grade model.Grade
}{
	{800, "A+"},
	{780, "A"},
	{750, "A-"},
	{720, "B+"},
	{690, "B"},
	{660, "B-"},
	{630, "C+"},
	{600, "C"},
	{570, "C-"},
	{500, "D"},
}

// GradeFor maps a composite to its letter grade, scanning high to low.
func GradeFor(composite int) model.Grade {
	for _, row := range gradeTable {
		if composite >= row.min {
			return row.grade
		}
	}
	return "F"
}

// RiskTierFor maps a composite to its risk tier.
func RiskTierFor(composite int) model.RiskTier {
	switch {
	case composite >= lowRiskMin:
		return model.RiskLow
	case composite >= mediumRiskMin:
		return model.RiskMedium
	default:
		return model.RiskHigh
	}
}

// Grades lists every grade from best to worst.
func Grades() []model.Grade {
	out := make([]model.Grade, 0, len(gradeTable)+1)
	for _, row := range gradeTable {
		out = append(out, row.grade)
	}
	return append(out, "F")
}
