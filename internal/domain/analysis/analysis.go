// Package analysis is the parse-validate-or-fallback pipeline around the
// external inference collaborator. Untrusted text enters here and only a
// validated payload or the fallback assessment leaves.
package analysis

import (
	"context"
	"errors"
	"time"

	"github.com/okian/yecs/internal/domain/fallback"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/normalize"
	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/pkg/logger"
	"github.com/okian/yecs/pkg/metrics"
)

// Fallback reasons, also used as metric labels.
const (
	ReasonUnavailable = "unavailable"
	ReasonTimeout     = "timeout"
	ReasonMalformed   = "malformed"
	ReasonCompute     = "compute"
)

const defaultTimeout = 60 * time.Second

// Generator is the narrow view of the inference collaborator the analyzer
// needs: a prompt in, free-form text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Analyzer produces an assessment for a profile. It never returns an error:
// every failure of the collaborator degrades to the fallback evaluator.
type Analyzer struct {
	gen        Generator
	engine     *scoring.Engine
	normalizer *normalize.Normalizer
	fallback   *fallback.Evaluator
	timeout    time.Duration
	logger     logger.Logger
}

// New creates an Analyzer. A nil generator always falls back.
func New(gen Generator, opts ...Option) *Analyzer {
	a := &Analyzer{
		gen:     gen,
		timeout: defaultTimeout,
		logger:  logger.Get().Named("analysis"),
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.engine == nil {
		a.engine = scoring.NewEngine(nil)
	}
	if a.normalizer == nil {
		a.normalizer = normalize.New(normalize.WithWeights(a.engine.Weights()))
	}
	if a.fallback == nil {
		a.fallback = fallback.New(fallback.WithNormalizer(a.normalizer))
	}
	return a
}

// Analyze scores p for subject. The composite always comes from the local
// engine; a valid inference payload contributes the narrative, the
// recommendations and, when present, the predictions.
func (a *Analyzer) Analyze(ctx context.Context, subject string, p model.Profile) model.Assessment {
	if a.gen == nil {
		return a.degrade(ctx, subject, p, ReasonUnavailable, nil)
	}

	prompt, err := BuildPrompt(p)
	if err != nil {
		return a.degrade(ctx, subject, p, ReasonCompute, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	text, err := a.gen.Generate(callCtx, prompt)
	if err != nil {
		reason := ReasonUnavailable
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			reason = ReasonTimeout
		}
		return a.degrade(ctx, subject, p, reason, err)
	}

	payload, err := ParsePayload(text)
	if err != nil {
		return a.degrade(ctx, subject, p, ReasonMalformed, err)
	}

	snap, err := a.engine.Compute(a.normalizer.Normalize(p), p.IndustryContext())
	if err != nil {
		return a.degrade(ctx, subject, p, ReasonCompute, err)
	}
	snap.Subject = subject
	if payload.Predictions != nil {
		snap.Predictions = payload.Predictions.Model()
	}

	recs := payload.Recommendations
	if len(recs) == 0 {
		recs = scoring.Suggestions(snap)
	}

	a.logger.Debug(ctx, "inference assessment accepted",
		logger.Subject(subject),
		logger.Int("composite", snap.Composite),
		logger.Float64("inferenceScore", payload.Score),
	)
	return model.Assessment{
		Snapshot:        snap,
		Narrative:       payload.Analysis,
		Recommendations: recs,
	}
}

// Fallback returns the deterministic assessment directly.
func (a *Analyzer) Fallback(subject string, p model.Profile) model.Assessment {
	out := a.fallback.Evaluate(p)
	out.Snapshot.Subject = subject
	return out
}

// Engine exposes the scoring engine the analyzer computes with.
func (a *Analyzer) Engine() *scoring.Engine { return a.engine }

// Normalizer exposes the normalizer the analyzer computes with.
func (a *Analyzer) Normalizer() *normalize.Normalizer { return a.normalizer }

func (a *Analyzer) degrade(ctx context.Context, subject string, p model.Profile, reason string, cause error) model.Assessment {
	metrics.RecordFallback(reason)
	fields := []logger.Field{logger.Subject(subject), logger.String("reason", reason)}
	if cause != nil {
		fields = append(fields, logger.Error(cause))
	}
	a.logger.Warn(ctx, "using fallback assessment", fields...)

	out := a.Fallback(subject, p)
	out.FallbackReason = reason
	return out
}
