package service

import (
	"github.com/okian/yecs/internal/adapters/inference"
	"github.com/okian/yecs/internal/adapters/repository"
	"github.com/okian/yecs/internal/config"
	"github.com/okian/yecs/internal/session"
	"github.com/okian/yecs/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithConfig replaces the default configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg != nil {
			s.cfg = cfg
		}
	}
}

// WithWorkerCount sets the number of evaluation workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the evaluation queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the request id cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithInference replaces the inference client built from config.
func WithInference(c inference.Client) Option {
	return func(s *Service) {
		if c != nil {
			s.inference = c
		}
	}
}

// WithDialFunc replaces the websocket dialer used by sessions.
func WithDialFunc(d session.DialFunc) Option {
	return func(s *Service) {
		if d != nil {
			s.dial = d
		}
	}
}

// WithCache sets the last-known snapshot cache instead of dialing Redis.
func WithCache(c repository.Cache) Option {
	return func(s *Service) {
		if c != nil {
			s.cache = c
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
