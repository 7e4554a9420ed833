// Package config defines engine configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Load layers a YAML file and YECS_ environment variables on top.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"runtime"
	"time"
)

// Inference providers understood by the engine.
const (
	ProviderOllama = "ollama"
	ProviderGemini = "gemini"
	ProviderNone   = "none"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat is text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// ChannelURL is the websocket endpoint of the authoritative score server.
	ChannelURL string `koanf:"channel_url"`
	// MockAddr is where the mock authoritative server listens.
	MockAddr string `koanf:"mock_addr"`
	// MockMode starts an in-process mock server and points ChannelURL at it.
	MockMode bool `koanf:"mock_mode"`

	// AckTimeout bounds how long an optimistic edit stays in flight.
	AckTimeout time.Duration `koanf:"ack_timeout"`
	// RefreshInterval is added to GeneratedAt to produce NextRefreshAt.
	RefreshInterval time.Duration `koanf:"refresh_interval"`
	// RefreshRate and RefreshBurst throttle refresh requests per session.
	RefreshRate  float64 `koanf:"refresh_rate"`
	RefreshBurst int     `koanf:"refresh_burst"`

	// Reconnect policy applied by the supervisor after transport failures.
	ReconnectBase        time.Duration `koanf:"reconnect_base"`
	ReconnectMax         time.Duration `koanf:"reconnect_max"`
	ReconnectMaxAttempts int           `koanf:"reconnect_max_attempts"`

	// InferenceProvider selects ollama, gemini or none.
	InferenceProvider string        `koanf:"inference_provider"`
	InferenceTimeout  time.Duration `koanf:"inference_timeout"`
	OllamaURL         string        `koanf:"ollama_url"`
	OllamaModel       string        `koanf:"ollama_model"`
	GeminiAPIKey      string        `koanf:"gemini_api_key"`
	GeminiModel       string        `koanf:"gemini_model"`
	ProbeInterval     time.Duration `koanf:"probe_interval"`

	// Circuit breaker around the inference collaborator.
	BreakerMaxFailures int           `koanf:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `koanf:"breaker_open_timeout"`

	// RedisAddr enables the last-known snapshot cache when set.
	RedisAddr string        `koanf:"redis_addr"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`

	// EventQueueSize bounds the in-memory evaluation queue.
	EventQueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of evaluation workers.
	WorkerCount int `koanf:"worker_count"`
	// DedupeSize sets the size of the evaluation request id cache.
	DedupeSize int `koanf:"dedupe_size"`

	// Weights overrides the default category weights. Rescaled to sum to 1.
	Weights map[string]float64 `koanf:"weights"`
	// IdealAgeMin and IdealAgeMax bound the full-credit age band.
	IdealAgeMin int `koanf:"ideal_age_min"`
	IdealAgeMax int `koanf:"ideal_age_max"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:             "info",
		LogFormat:            "text",
		Addr:                 ":9080",
		ChannelURL:           "ws://localhost:9081/ws",
		MockAddr:             ":9081",
		AckTimeout:           5 * time.Second,
		RefreshInterval:      24 * time.Hour,
		RefreshRate:          0.2,
		RefreshBurst:         1,
		ReconnectBase:        500 * time.Millisecond,
		ReconnectMax:         30 * time.Second,
		ReconnectMaxAttempts: 10,
		InferenceProvider:    ProviderOllama,
		InferenceTimeout:     60 * time.Second,
		OllamaURL:            "http://localhost:11434",
		OllamaModel:          "llama3",
		GeminiModel:          "gemini-1.5-flash",
		ProbeInterval:        30 * time.Second,
		BreakerMaxFailures:   5,
		BreakerOpenTimeout:   30 * time.Second,
		CacheTTL:             7 * 24 * time.Hour,
		EventQueueSize:       10_000,
		WorkerCount:          runtime.NumCPU() * 2,
		DedupeSize:           100_000,
		IdealAgeMin:          25,
		IdealAgeMax:          35,
	}
}
