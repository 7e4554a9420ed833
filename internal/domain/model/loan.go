package model

import "github.com/shopspring/decimal"

// Eligibility is the loan band a composite falls in.
type Eligibility string

const (
	EligibilityHigh   Eligibility = "high"
	EligibilityMedium Eligibility = "medium"
	EligibilityLow    Eligibility = "low"
)

// LoanOffer is derived on demand from a composite and never stored.
type LoanOffer struct {
	Bank           string          `json:"bank"`
	InterestRate   decimal.Decimal `json:"interestRate"`
	MaxAmount      decimal.Decimal `json:"maxLoanAmount"`
	MonthlyPayment decimal.Decimal `json:"monthlyPayment"`
	Eligibility    Eligibility     `json:"eligibility"`
	TermMonths     int             `json:"termMonths"`
	Terms          string          `json:"terms"`
}
