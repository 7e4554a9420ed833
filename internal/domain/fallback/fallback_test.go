package fallback_test

import (
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/okian/yecs/internal/domain/fallback"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/normalize"
	"github.com/okian/yecs/internal/domain/scoring"
	. "github.com/smartystreets/goconvey/convey"
)

func TestEvaluate(t *testing.T) {
	Convey("Given a fallback evaluator with a fixed clock", t, func() {
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		ev := fallback.New(fallback.WithClock(func() time.Time { return now }))

		Convey("When evaluating a typical profile", func() {
			p := model.Profile{
				Age: 30, AnnualIncome: 90_000, EmploymentYears: 4, HomeOwnership: model.HomeRent,
				CreditHistoryYears: 6, BusinessExperienceYears: 3,
			}
			a := ev.Evaluate(p)

			Convey("Then the reduced factor formula should apply", func() {
				So(a.Snapshot.Composite, ShouldEqual, 652)
				So(a.Snapshot.RiskTier, ShouldEqual, model.RiskMedium)
				So(a.Snapshot.Grade, ShouldEqual, model.Grade("C+"))
				So(a.Snapshot.Source, ShouldEqual, model.SourceFallback)
				So(a.Snapshot.GeneratedAt, ShouldEqual, now)
				So(a.Narrative, ShouldContainSubstring, "652")
				So(a.Narrative, ShouldContainSubstring, "good prospects")
			})
		})

		Convey("When evaluating an empty profile", func() {
			a := ev.Evaluate(model.Profile{})

			Convey("Then neutral defaults should apply without failing", func() {
				So(a.Snapshot.Composite, ShouldEqual, 407)
				So(a.Snapshot.Grade, ShouldEqual, model.Grade("F"))
				So(a.Snapshot.RiskTier, ShouldEqual, model.RiskHigh)
				So(a.Narrative, ShouldContainSubstring, "Consider improving")
			})
		})

		Convey("When evaluating hostile inputs", func() {
			inputs := []model.Profile{
				{AnnualIncome: math.Inf(1), EmploymentYears: 1e300, CreditHistoryYears: math.NaN()},
				{AnnualIncome: -1e9, EmploymentYears: -4, Age: -3},
				{Age: 1 << 30, HomeOwnership: "castle", BusinessExperienceYears: math.Inf(-1)},
			}

			Convey("Then it should never panic and stay in range", func() {
				for _, p := range inputs {
					So(func() { ev.Evaluate(p) }, ShouldNotPanic)
					c := ev.Evaluate(p).Snapshot.Composite
					So(c, ShouldBeBetweenOrEqual, 300, 850)
				}
			})
		})

		Convey("When the same profile is evaluated twice", func() {
			p := model.Profile{Age: 41, AnnualIncome: 120_000, HomeOwnership: "own"}

			Convey("Then the result should be identical", func() {
				So(ev.Evaluate(p), ShouldResemble, ev.Evaluate(p))
			})
		})
	})
}

func TestShapeEquivalence(t *testing.T) {
	Convey("Given a profile scored by both paths", t, func() {
		p := model.Profile{
			Age: 33, AnnualIncome: 85_000, EmploymentYears: 6, HomeOwnership: model.HomeMortgage,
			CreditHistoryYears: 8, BusinessExperienceYears: 1, Education: "masters", BusinessStage: "mvp",
			RiskTolerance: 6, MarketConditions: 0.5,
		}
		primary, err := scoring.NewEngine(nil).Compute(normalize.New().Normalize(p), p.IndustryContext())
		So(err, ShouldBeNil)
		fb := fallback.New().Evaluate(p).Snapshot

		Convey("Then they should differ only by values and the source tag", func() {
			So(reflect.TypeOf(fb), ShouldEqual, reflect.TypeOf(primary))
			So(fb.Factors.Missing(), ShouldBeEmpty)
			So(len(fb.Factors), ShouldEqual, len(primary.Factors))
			for c := range primary.Factors {
				So(fb.Factors[c].Weight, ShouldAlmostEqual, primary.Factors[c].Weight, 1e-9)
				So(fb.Factors[c].Score, ShouldBeBetweenOrEqual, 0, 100)
			}
			So(fb.Grade, ShouldEqual, scoring.GradeFor(fb.Composite))
			So(fb.RiskTier, ShouldEqual, scoring.RiskTierFor(fb.Composite))
			So(fb.NextRefreshAt.After(fb.GeneratedAt), ShouldBeTrue)
			So(primary.Source, ShouldEqual, model.SourcePrimary)
			So(fb.Source, ShouldEqual, model.SourceFallback)
		})
	})
}
