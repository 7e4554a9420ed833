package model

import (
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

// Home ownership values.
const (
	HomeOwn      = "OWN"
	HomeMortgage = "MORTGAGE"
	HomeRent     = "RENT"
	HomeOther    = "OTHER"
)

// DigitalPresence flags the subject's online footprint.
type DigitalPresence struct {
	GitHub              bool `json:"github"`
	BusinessSocialMedia bool `json:"business_social_media"`
	Freelance           bool `json:"freelance"`
	OnlineCourses       int  `json:"online_courses" validate:"gte=0"`
}

// Profile holds the raw, heterogeneous attributes a subject supplies.
// Zero values mean "not provided" and are mapped to neutral scores.
type Profile struct {
	Age                     int             `json:"age" validate:"gte=0,lte=120"`
	AnnualIncome            float64         `json:"income" validate:"gte=0"`
	EmploymentYears         float64         `json:"employmentLength" validate:"gte=0"`
	HomeOwnership           string          `json:"homeOwnership" validate:"omitempty,oneof=OWN MORTGAGE RENT OTHER own mortgage rent other"`
	BusinessExperienceYears float64         `json:"businessExperience" validate:"gte=0"`
	CreditHistoryYears      float64         `json:"creditHistory" validate:"gte=0"`
	BankingHistoryYears     float64         `json:"bankingHistory" validate:"gte=0"`
	LoanIntent              string          `json:"loanIntent,omitempty"`
	LoanAmount              float64         `json:"loanAmount" validate:"gte=0"`
	Education               string          `json:"education,omitempty"`
	Industry                string          `json:"industry,omitempty"`
	BusinessStage           string          `json:"businessStage,omitempty"`
	RiskTolerance           int             `json:"riskTolerance" validate:"gte=0,lte=10"`
	Digital                 DigitalPresence `json:"digital"`
	MarketConditions        float64         `json:"marketConditions" validate:"gte=0"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func profileValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate rejects out-of-range attributes.
func (p Profile) Validate() error {
	if err := profileValidator().Struct(p); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidProfile, err)
	}
	return nil
}

// IndustryContext returns the industry context carried by the profile.
func (p Profile) IndustryContext() IndustryContext {
	return IndustryContext{Industry: p.Industry, MarketConditions: p.MarketConditions}
}
