package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "YECS_"

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if YECS_CONFIG is set
//  3. env (prefix YECS_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	if path := os.Getenv(EnvPrefix + "CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// YECS_ACK_TIMEOUT -> ack_timeout. Keys stay flat to match the koanf tags.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(s)
		return strings.TrimPrefix(s, strings.ToLower(EnvPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants the engine relies on at startup.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case !c.MockMode && c.ChannelURL == "":
		return fmt.Errorf("%w: channel_url must not be empty", ErrInvalidConfig)
	case c.AckTimeout <= 0:
		return fmt.Errorf("%w: ack_timeout must be positive", ErrInvalidConfig)
	case c.InferenceTimeout <= 0:
		return fmt.Errorf("%w: inference_timeout must be positive", ErrInvalidConfig)
	case c.IdealAgeMin <= 0 || c.IdealAgeMax < c.IdealAgeMin:
		return fmt.Errorf("%w: ideal age band %d-%d", ErrInvalidConfig, c.IdealAgeMin, c.IdealAgeMax)
	}

	switch c.InferenceProvider {
	case ProviderOllama, ProviderNone:
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("%w: gemini provider requires gemini_api_key", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown inference_provider %q", ErrInvalidConfig, c.InferenceProvider)
	}
	return nil
}
