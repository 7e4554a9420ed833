package analysis

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed schema.json
var payloadSchema []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
	validate   = validator.New(validator.WithRequiredStructEnabled())
)

// Payload is the validated shape of an inference response.
type Payload struct {
	Score           float64             `json:"score" validate:"gte=300,lte=850"`
	RiskLevel       string              `json:"riskLevel" validate:"oneof=low medium high"`
	CreditGrade     string              `json:"creditGrade"`
	Analysis        string              `json:"analysis" validate:"required"`
	Predictions     *PayloadPredictions `json:"predictions"`
	Recommendations []string            `json:"recommendations" validate:"dive,required"`
}

// PayloadPredictions are optional probabilities supplied by the collaborator.
type PayloadPredictions struct {
	SuccessProbability float64 `json:"success_probability" validate:"gte=0,lte=1"`
	DefaultRisk        float64 `json:"default_risk" validate:"gte=0,lte=1"`
	GrowthPotential    float64 `json:"growth_potential" validate:"gte=0,lte=1"`
	FundingReadiness   float64 `json:"funding_readiness" validate:"gte=0,lte=1"`
	MarketFit          float64 `json:"market_fit_score" validate:"gte=0,lte=1"`
}

// Model converts to the domain type.
func (p PayloadPredictions) Model() model.Predictions {
	return model.Predictions{
		SuccessProbability: p.SuccessProbability,
		DefaultRisk:        p.DefaultRisk,
		GrowthPotential:    p.GrowthPotential,
		FundingReadiness:   p.FundingReadiness,
		MarketFit:          p.MarketFit,
	}
}

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(payloadSchema))
	})
	return schema, schemaErr
}

// ParsePayload extracts, schema-checks, decodes and validates the first JSON
// object in text. Every failure wraps ErrMalformedExternalResult.
func ParsePayload(text string) (Payload, error) {
	obj, err := ExtractJSONObject(text)
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedExternalResult, err)
	}

	s, err := compiledSchema()
	if err != nil {
		return Payload{}, fmt.Errorf("%w: schema: %w", ErrMalformedExternalResult, err)
	}
	result, err := s.Validate(gojsonschema.NewStringLoader(obj))
	if err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedExternalResult, err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			field := desc.Field()
			if field == "" {
				field = "(root)"
			}
			msgs = append(msgs, field+": "+desc.Description())
		}
		return Payload{}, fmt.Errorf("%w: %s", ErrMalformedExternalResult, strings.Join(msgs, "; "))
	}

	var p Payload
	if err := json.Unmarshal([]byte(obj), &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedExternalResult, err)
	}
	p.Analysis = strings.TrimSpace(p.Analysis)
	if err := validate.Struct(p); err != nil {
		return Payload{}, fmt.Errorf("%w: %w", ErrMalformedExternalResult, err)
	}
	return p, nil
}
