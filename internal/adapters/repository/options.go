package repository

import (
	"time"

	"github.com/okian/yecs/pkg/logger"
)

// Option configures a MemStore.
type Option func(*MemStore)

// WithCache writes confirmed snapshots through to c and enables Seed.
func WithCache(c Cache) Option {
	return func(s *MemStore) {
		s.cache = c
	}
}

// WithCacheTimeout bounds each cache round trip.
func WithCacheTimeout(d time.Duration) Option {
	return func(s *MemStore) {
		if d > 0 {
			s.cacheTimeout = d
		}
	}
}

// WithLogger overrides the store logger.
func WithLogger(l logger.Logger) Option {
	return func(s *MemStore) {
		if l != nil {
			s.log = l
		}
	}
}

// CacheOption configures a RedisCache.
type CacheOption func(*RedisCache)

// WithTTL sets how long cached snapshots live.
func WithTTL(d time.Duration) CacheOption {
	return func(c *RedisCache) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithKeyPrefix sets the key namespace.
func WithKeyPrefix(p string) CacheOption {
	return func(c *RedisCache) {
		if p != "" {
			c.prefix = p
		}
	}
}
