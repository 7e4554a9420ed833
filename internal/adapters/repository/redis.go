package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/okian/yecs/internal/domain/model"
	"github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "yecs:snapshot:"
	defaultTTL       = 7 * 24 * time.Hour
)

// RedisCache stores snapshots as JSON under prefix+subject.
type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
	prefix string
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client redis.Cmdable, opts ...CacheOption) *RedisCache {
	c := &RedisCache{
		client: client,
		ttl:    defaultTTL,
		prefix: defaultKeyPrefix,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DialRedis connects to addr and checks it with PING.
func DialRedis(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  500 * time.Millisecond,
		WriteTimeout: 500 * time.Millisecond,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (c *RedisCache) key(subject string) string { return c.prefix + subject }

// Save implements Cache.
func (c *RedisCache) Save(ctx context.Context, snap model.ScoreSnapshot) error {
	if snap.Subject == "" {
		return ErrEmptySubject
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return c.client.Set(ctx, c.key(snap.Subject), b, c.ttl).Err()
}

// Load implements Cache.
func (c *RedisCache) Load(ctx context.Context, subject string) (model.ScoreSnapshot, error) {
	b, err := c.client.Get(ctx, c.key(subject)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.ScoreSnapshot{}, fmt.Errorf("%w: %s", ErrNotFound, subject)
	}
	if err != nil {
		return model.ScoreSnapshot{}, err
	}

	var snap model.ScoreSnapshot
	if err := json.Unmarshal(b, &snap); err != nil {
		return model.ScoreSnapshot{}, fmt.Errorf("decode snapshot %s: %w", subject, err)
	}
	return snap, nil
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, subject string) error {
	return c.client.Del(ctx, c.key(subject)).Err()
}
