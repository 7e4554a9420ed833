package model_test

import (
	"errors"
	"testing"
	"time"

	model "github.com/okian/yecs/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseCategory(t *testing.T) {
	convey.Convey("Given category names", t, func() {
		convey.Convey("When the name is known in any case", func() {
			c, err := model.ParseCategory(" Financial ")

			convey.Convey("Then it should parse", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(c, convey.ShouldEqual, model.Financial)
			})
		})

		convey.Convey("When the name is unknown", func() {
			_, err := model.ParseCategory("karma")

			convey.Convey("Then it should fail with ErrUnknownCategory", func() {
				convey.So(errors.Is(err, model.ErrUnknownCategory), convey.ShouldBeTrue)
			})
		})

		convey.Convey("Then AllCategories should hold eight valid entries", func() {
			convey.So(len(model.AllCategories), convey.ShouldEqual, 8)
			for _, c := range model.AllCategories {
				convey.So(c.Valid(), convey.ShouldBeTrue)
			}
		})
	})
}

func TestSnapshotClone(t *testing.T) {
	convey.Convey("Given a snapshot with factors", t, func() {
		s := model.ScoreSnapshot{
			Composite: 700,
			Factors: model.Factors{
				model.Financial: {Score: 80, Weight: 0.2, SubMetrics: map[string]float64{"income": 80}},
			},
			GeneratedAt: time.Unix(100, 0),
		}

		convey.Convey("When the clone is mutated", func() {
			c := s.Clone()
			c.Factors[model.Financial].SubMetrics["income"] = 10
			c.Factors[model.Credit] = model.CategoryResult{Score: 1}

			convey.Convey("Then the original should be untouched", func() {
				convey.So(s.Factors[model.Financial].SubMetrics["income"], convey.ShouldEqual, 80)
				convey.So(len(s.Factors), convey.ShouldEqual, 1)
			})
		})

		convey.Convey("Then NewerThan should compare GeneratedAt strictly", func() {
			later := s
			later.GeneratedAt = s.GeneratedAt.Add(time.Second)
			convey.So(later.NewerThan(s), convey.ShouldBeTrue)
			convey.So(s.NewerThan(later), convey.ShouldBeFalse)
			convey.So(s.NewerThan(s), convey.ShouldBeFalse)
		})

		convey.Convey("Then Missing should list absent categories", func() {
			convey.So(len(s.Factors.Missing()), convey.ShouldEqual, 7)
			convey.So(s.Factors.Missing()[0], convey.ShouldEqual, model.Credit)
		})
	})
}

func TestProfileValidate(t *testing.T) {
	convey.Convey("Given profiles", t, func() {
		convey.Convey("When the zero profile is validated", func() {
			convey.Convey("Then it should pass", func() {
				convey.So(model.Profile{}.Validate(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When attributes are out of range", func() {
			p := model.Profile{Age: 200, RiskTolerance: 11, HomeOwnership: "CASTLE"}

			convey.Convey("Then it should fail with ErrInvalidProfile", func() {
				err := p.Validate()
				convey.So(errors.Is(err, model.ErrInvalidProfile), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a complete profile is validated", func() {
			p := model.Profile{
				Age: 30, AnnualIncome: 90000, EmploymentYears: 4, HomeOwnership: model.HomeRent,
				CreditHistoryYears: 6, RiskTolerance: 7, Industry: "Technology", MarketConditions: 0.7,
			}

			convey.Convey("Then it should pass and expose its industry context", func() {
				convey.So(p.Validate(), convey.ShouldBeNil)
				convey.So(p.IndustryContext().Industry, convey.ShouldEqual, "Technology")
				convey.So(p.IndustryContext().MarketConditions, convey.ShouldEqual, 0.7)
			})
		})
	})
}
