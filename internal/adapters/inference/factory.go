package inference

import (
	"context"
	"fmt"

	"github.com/okian/yecs/internal/config"
)

// New builds the provider named in cfg, wrapped in a breaker.
func New(ctx context.Context, cfg *config.Config) (Client, error) {
	var base Client
	switch cfg.InferenceProvider {
	case config.ProviderOllama:
		base = NewOllama(cfg.OllamaURL, WithOllamaModel(cfg.OllamaModel))
	case config.ProviderGemini:
		g, err := NewGemini(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, err
		}
		base = g
	case config.ProviderNone, "":
		return None{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidConfig, cfg.InferenceProvider)
	}

	return NewBreaker(base,
		WithMaxFailures(cfg.BreakerMaxFailures),
		WithOpenTimeout(cfg.BreakerOpenTimeout),
	), nil
}
