// Package lending derives loan offers from a composite score using a
// data-driven tier table.
package lending

import (
	"errors"
	"sort"

	"github.com/okian/yecs/internal/domain/model"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for a negative requested amount.
var ErrInvalidAmount = errors.New("requested amount must not be negative")

// LenderTerms describes one lender's offer inside a band.
type LenderTerms struct {
	Bank string
	// Rate is the annual interest rate in percent.
	Rate decimal.Decimal
	// AmountMultiplier scales the requested amount into the max amount.
	AmountMultiplier decimal.Decimal
	TermMonths       int
	Terms            string
}

// Band is a composite range with its lenders. A composite belongs to the
// first band, scanning high to low, whose MinComposite it meets.
type Band struct {
	MinComposite int
	Eligibility  model.Eligibility
	Lenders      []LenderTerms
}

// TierTable holds bands ordered by descending MinComposite.
type TierTable struct {
	bands []Band
}

// Option mutates a TierTable under construction.
type Option func(*TierTable)

// WithLender appends a lender to the band with the given eligibility.
// Unknown eligibilities are ignored.
func WithLender(e model.Eligibility, terms LenderTerms) Option {
	return func(t *TierTable) {
		for i := range t.bands {
			if t.bands[i].Eligibility == e {
				t.bands[i].Lenders = append(t.bands[i].Lenders, terms)
				return
			}
		}
	}
}

// WithBands replaces the bands entirely.
func WithBands(bands ...Band) Option {
	return func(t *TierTable) {
		t.bands = append([]Band(nil), bands...)
	}
}

// NewTierTable builds the default table and applies opts.
func NewTierTable(opts ...Option) *TierTable {
	t := &TierTable{bands: defaultBands()}
	for _, opt := range opts {
		opt(t)
	}
	sort.SliceStable(t.bands, func(i, j int) bool {
		return t.bands[i].MinComposite > t.bands[j].MinComposite
	})
	return t
}

func defaultBands() []Band {
	d := decimal.RequireFromString
	return []Band{
		{MinComposite: 750, Eligibility: model.EligibilityHigh, Lenders: []LenderTerms{
			{Bank: "Chase Business", Rate: d("6.5"), AmountMultiplier: d("1.5"), TermMonths: 60, Terms: "5-7 years, flexible repayment"},
			{Bank: "Wells Fargo", Rate: d("7.2"), AmountMultiplier: d("1.3"), TermMonths: 48, Terms: "3-5 years, competitive rates"},
		}},
		{MinComposite: 650, Eligibility: model.EligibilityMedium, Lenders: []LenderTerms{
			{Bank: "Bank of America", Rate: d("9.5"), AmountMultiplier: d("1"), TermMonths: 48, Terms: "3-5 years, standard terms"},
			{Bank: "Regional Credit Union", Rate: d("8.8"), AmountMultiplier: d("0.9"), TermMonths: 36, Terms: "2-4 years, member benefits"},
		}},
		{MinComposite: model.MinComposite, Eligibility: model.EligibilityLow, Lenders: []LenderTerms{
			{Bank: "Alternative Lender", Rate: d("12.5"), AmountMultiplier: d("0.7"), TermMonths: 24, Terms: "1-3 years, higher rates"},
		}},
	}
}

// Band returns the band a composite falls in. The lowest band catches
// anything below every threshold.
func (t *TierTable) Band(composite int) (Band, bool) {
	if len(t.bands) == 0 {
		return Band{}, false
	}
	for _, b := range t.bands {
		if composite >= b.MinComposite {
			return b, true
		}
	}
	return t.bands[len(t.bands)-1], true
}

// Offers lists the offers for a composite and requested amount. The monthly
// payment spreads the requested amount plus simple interest over the term,
// rounded to whole currency units.
func (t *TierTable) Offers(composite int, requested decimal.Decimal) ([]model.LoanOffer, error) {
	if requested.IsNegative() {
		return nil, ErrInvalidAmount
	}
	band, ok := t.Band(composite)
	if !ok {
		return nil, nil
	}

	hundred := decimal.NewFromInt(100)
	offers := make([]model.LoanOffer, 0, len(band.Lenders))
	for _, l := range band.Lenders {
		months := l.TermMonths
		if months <= 0 {
			months = 1
		}
		total := requested.Mul(decimal.NewFromInt(1).Add(l.Rate.Div(hundred)))
		offers = append(offers, model.LoanOffer{
			Bank:           l.Bank,
			InterestRate:   l.Rate,
			MaxAmount:      requested.Mul(l.AmountMultiplier).Round(2),
			MonthlyPayment: total.Div(decimal.NewFromInt(int64(months))).Round(0),
			Eligibility:    band.Eligibility,
			TermMonths:     l.TermMonths,
			Terms:          l.Terms,
		})
	}
	return offers, nil
}
