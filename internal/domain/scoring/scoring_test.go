package scoring_test

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/okian/yecs/internal/domain/model"
	scoring "github.com/okian/yecs/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func uniformFactors(score float64) model.Factors {
	f := make(model.Factors, len(model.AllCategories))
	for _, c := range model.AllCategories {
		f[c] = model.CategoryResult{Score: score}
	}
	return f
}

func exampleFactors() model.Factors {
	scores := map[model.FactorCategory]float64{
		model.Financial: 85, model.Credit: 78, model.Identity: 92, model.Business: 74,
		model.Social: 71, model.Behavioral: 82, model.Entrepreneurial: 79, model.Education: 86,
	}
	f := make(model.Factors, len(scores))
	for c, s := range scores {
		f[c] = model.CategoryResult{Score: s}
	}
	return f
}

func TestWeightTable(t *testing.T) {
	Convey("Given weight tables", t, func() {
		Convey("When the source scheme is used without renormalizing", func() {
			_, err := scoring.NewWeightTable(scoring.SourceWeights())

			Convey("Then it should be rejected because it sums to 1.35", func() {
				So(errors.Is(err, scoring.ErrInvalidFactorInput), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "1.350")
			})
		})

		Convey("When DefaultWeights is used", func() {
			table := scoring.DefaultWeights()

			Convey("Then the weights should be the source scheme divided by 1.35", func() {
				var sum float64
				for c, w := range table.Map() {
					So(w, ShouldAlmostEqual, scoring.SourceWeights()[c]/1.35, 1e-9)
					sum += w
				}
				So(sum, ShouldAlmostEqual, 1.0, 1e-9)
				So(table.Weight(model.Business), ShouldAlmostEqual, 0.30/1.35, 1e-9)
			})
		})

		Convey("When a category is missing", func() {
			w := scoring.SourceWeights()
			delete(w, model.Social)
			_, err := scoring.NewWeightTable(w, scoring.WithRenormalize())

			Convey("Then it should fail even with renormalization", func() {
				So(errors.Is(err, scoring.ErrInvalidFactorInput), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "social")
			})
		})

		Convey("When an unknown category is present", func() {
			w := scoring.SourceWeights()
			w["luck"] = 0.1
			_, err := scoring.NewWeightTable(w, scoring.WithRenormalize())

			Convey("Then it should fail", func() {
				So(errors.Is(err, scoring.ErrInvalidFactorInput), ShouldBeTrue)
			})
		})

		Convey("When a weight is not positive", func() {
			w := scoring.SourceWeights()
			w[model.Identity] = 0
			_, err := scoring.NewWeightTable(w, scoring.WithRenormalize())

			Convey("Then it should fail", func() {
				So(errors.Is(err, scoring.ErrInvalidFactorInput), ShouldBeTrue)
			})
		})

		Convey("When weights already sum to 1", func() {
			w := map[model.FactorCategory]float64{}
			for _, c := range model.AllCategories {
				w[c] = 0.125
			}
			table, err := scoring.NewWeightTable(w)

			Convey("Then they should be kept as given", func() {
				So(err, ShouldBeNil)
				So(table.Weight(model.Credit), ShouldEqual, 0.125)
			})
		})
	})
}

func TestGradeAndRisk(t *testing.T) {
	Convey("Given the grade threshold table", t, func() {
		cases := []struct {
			composite int
			grade     model.Grade
			risk      model.RiskTier
		}{
			{850, "A+", model.RiskLow},
			{800, "A+", model.RiskLow},
			{799, "A", model.RiskLow},
			{780, "A", model.RiskLow},
			{750, "A-", model.RiskLow},
			{749, "B+", model.RiskMedium},
			{720, "B+", model.RiskMedium},
			{690, "B", model.RiskMedium},
			{660, "B-", model.RiskMedium},
			{650, "C+", model.RiskMedium},
			{649, "C+", model.RiskHigh},
			{600, "C", model.RiskHigh},
			{570, "C-", model.RiskHigh},
			{500, "D", model.RiskHigh},
			{499, "F", model.RiskHigh},
			{300, "F", model.RiskHigh},
		}

		Convey("Then every composite should map to a fixed grade and tier", func() {
			for _, tc := range cases {
				So(scoring.GradeFor(tc.composite), ShouldEqual, tc.grade)
				So(scoring.RiskTierFor(tc.composite), ShouldEqual, tc.risk)
			}
			So(len(scoring.Grades()), ShouldEqual, 11)
		})
	})
}

func TestEngineCompute(t *testing.T) {
	Convey("Given an engine with default weights and a fixed clock", t, func() {
		now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		engine := scoring.NewEngine(nil,
			scoring.WithClock(func() time.Time { return now }),
			scoring.WithRefreshInterval(6*time.Hour),
		)

		Convey("When computing the illustrative example with neutral market", func() {
			snap, err := engine.Compute(exampleFactors(), model.IndustryContext{})

			Convey("Then it should produce 741, medium risk, B+", func() {
				So(err, ShouldBeNil)
				So(snap.Composite, ShouldEqual, 741)
				So(snap.RiskTier, ShouldEqual, model.RiskMedium)
				So(snap.Grade, ShouldEqual, model.Grade("B+"))
				So(snap.Source, ShouldEqual, model.SourcePrimary)
				So(snap.GeneratedAt, ShouldEqual, now)
				So(snap.NextRefreshAt, ShouldEqual, now.Add(6*time.Hour))
				So(snap.Factors[model.Business].Weight, ShouldAlmostEqual, 0.30/1.35, 1e-9)
			})
		})

		Convey("When the market is strong, given as a percentage", func() {
			snap, err := engine.Compute(exampleFactors(), model.IndustryContext{MarketConditions: 75})

			Convey("Then the multiplier should lift the composite to low risk", func() {
				So(err, ShouldBeNil)
				So(snap.Composite, ShouldEqual, 774)
				So(snap.RiskTier, ShouldEqual, model.RiskLow)
				So(snap.Grade, ShouldEqual, model.Grade("A-"))
			})
		})

		Convey("When scores are malformed", func() {
			f := uniformFactors(1e9)
			f[model.Credit] = model.CategoryResult{Score: math.NaN()}
			f[model.Social] = model.CategoryResult{Score: -50}
			snap, err := engine.Compute(f, model.IndustryContext{MarketConditions: 5})

			Convey("Then the composite should stay in range and inputs be clamped", func() {
				So(err, ShouldBeNil)
				So(snap.Composite, ShouldBeBetweenOrEqual, 300, 850)
				So(snap.Factors[model.Credit].Score, ShouldEqual, 0)
				So(snap.Factors[model.Social].Score, ShouldEqual, 0)
				So(snap.Factors[model.Financial].Score, ShouldEqual, 100)
			})
		})

		Convey("When every score is 0 or 100", func() {
			low, _ := engine.Compute(uniformFactors(0), model.IndustryContext{})
			high, _ := engine.Compute(uniformFactors(100), model.IndustryContext{MarketConditions: 1})

			Convey("Then the composite should hit the bounds", func() {
				So(low.Composite, ShouldEqual, 300)
				So(high.Composite, ShouldEqual, 850)
			})
		})

		Convey("When a category is missing", func() {
			f := uniformFactors(50)
			delete(f, model.Education)
			_, err := engine.Compute(f, model.IndustryContext{})

			Convey("Then it should fail with ErrInvalidFactorInput", func() {
				So(errors.Is(err, scoring.ErrInvalidFactorInput), ShouldBeTrue)
				So(err.Error(), ShouldContainSubstring, "education")
			})
		})

		Convey("When raising any single category", func() {
			Convey("Then the composite should never decrease", func() {
				base := exampleFactors()
				for _, c := range model.AllCategories {
					prev, err := engine.Composite(base, model.IndustryContext{MarketConditions: 0.4})
					So(err, ShouldBeNil)
					for s := base[c].Score; s <= 100; s += 3 {
						f := base.Clone()
						f[c] = model.CategoryResult{Score: s}
						got, _ := engine.Composite(f, model.IndustryContext{MarketConditions: 0.4})
						So(got, ShouldBeGreaterThanOrEqualTo, prev)
						prev = got
					}
				}
			})
		})

		Convey("When predictions are derived", func() {
			snap, _ := engine.Compute(exampleFactors(), model.IndustryContext{})
			p := snap.Predictions

			Convey("Then each should be a probability", func() {
				for _, v := range []float64{p.SuccessProbability, p.DefaultRisk, p.GrowthPotential, p.FundingReadiness, p.MarketFit} {
					So(v, ShouldBeBetweenOrEqual, 0, 1)
				}
				again, _ := engine.Compute(exampleFactors(), model.IndustryContext{})
				So(again.Predictions, ShouldResemble, p)
			})
		})

		Convey("When recomputing an edited snapshot", func() {
			snap, _ := engine.Compute(exampleFactors(), model.IndustryContext{})
			edited := snap.Clone()
			edited.Factors[model.Business] = model.CategoryResult{Score: 100}
			edited.Source = model.SourceOptimistic
			out, err := engine.Recompute(edited)

			Convey("Then derived fields should change and metadata be kept", func() {
				So(err, ShouldBeNil)
				So(out.Composite, ShouldBeGreaterThan, snap.Composite)
				So(out.Grade, ShouldEqual, scoring.GradeFor(out.Composite))
				So(out.Source, ShouldEqual, model.SourceOptimistic)
				So(out.GeneratedAt, ShouldEqual, snap.GeneratedAt)
				So(snap.Factors[model.Business].Score, ShouldEqual, 74)
			})
		})
	})
}

func TestApplyTrend(t *testing.T) {
	Convey("Given successive snapshots", t, func() {
		t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
		prev := model.ScoreSnapshot{Composite: 700, GeneratedAt: t0}

		Convey("When there is no previous snapshot", func() {
			out := scoring.ApplyTrend(nil, prev)

			Convey("Then the trend should be flat", func() {
				So(out.Trend, ShouldResemble, model.Trend{Consistency: 1})
			})
		})

		Convey("When the next snapshot is 10 days later", func() {
			out := scoring.ApplyTrend(&prev, model.ScoreSnapshot{Composite: 755, GeneratedAt: t0.AddDate(0, 0, 10)})

			Convey("Then both deltas should be set", func() {
				So(out.Trend.Delta30, ShouldEqual, 55)
				So(out.Trend.Delta90, ShouldEqual, 55)
				So(out.Trend.Consistency, ShouldEqual, 0.9)
			})
		})

		Convey("When the next snapshot is 60 days later", func() {
			out := scoring.ApplyTrend(&prev, model.ScoreSnapshot{Composite: 645, GeneratedAt: t0.AddDate(0, 0, 60)})

			Convey("Then only the 90 day delta should be set", func() {
				So(out.Trend.Delta30, ShouldEqual, 0)
				So(out.Trend.Delta90, ShouldEqual, -55)
			})
		})
	})
}

func TestInsightsAndSuggestions(t *testing.T) {
	Convey("Given a snapshot with weak spots", t, func() {
		snap := model.ScoreSnapshot{
			Factors:     uniformFactors(80),
			Predictions: model.Predictions{SuccessProbability: 0.5, FundingReadiness: 0.9},
		}
		snap.Factors[model.Social] = model.CategoryResult{Score: 40}

		Convey("Then suggestions should name the weak category and prediction", func() {
			s := scoring.Suggestions(snap)
			So(s, ShouldHaveLength, 2)
			So(s[0], ShouldEqual, "Focus on improving social score by 10+ points")
			So(s[1], ShouldContainSubstring, "success probability")
		})

		Convey("Then insights should be static per category", func() {
			So(scoring.Insights(model.Financial), ShouldHaveLength, 4)
			So(scoring.Insights(model.Identity), ShouldBeNil)

			got := scoring.Insights(model.Business)
			got[0] = "changed"
			So(scoring.Insights(model.Business)[0], ShouldNotEqual, "changed")
		})
	})
}
