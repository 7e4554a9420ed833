package inference

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/okian/yecs/pkg/logger"
	"github.com/okian/yecs/pkg/metrics"
	"github.com/sony/gobreaker"
)

const (
	defaultMaxFailures = 5
	defaultOpenTimeout = 30 * time.Second
)

// Breaker guards a Client with a circuit breaker. While open, calls fail
// fast with ErrUnavailable instead of waiting on a dead collaborator.
type Breaker struct {
	next        Client
	cb          *gobreaker.CircuitBreaker
	maxFailures uint32
	openTimeout time.Duration
	log         logger.Logger
}

// NewBreaker wraps next.
func NewBreaker(next Client, opts ...BreakerOption) *Breaker {
	b := &Breaker{
		next:        next,
		maxFailures: defaultMaxFailures,
		openTimeout: defaultOpenTimeout,
		log:         logger.Get().Named("inference"),
	}
	for _, opt := range opts {
		opt(b)
	}

	st := gobreaker.Settings{
		Name:        next.Name(),
		MaxRequests: 1,
		Timeout:     b.openTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= b.maxFailures
		},
		// A caller giving up is not a provider failure.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(int(to))
			b.log.Warn(context.Background(), "breaker state changed",
				logger.String("provider", name),
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	}
	b.cb = gobreaker.NewCircuitBreaker(st)
	metrics.SetBreakerState(int(gobreaker.StateClosed))
	return b
}

func (b *Breaker) Name() string { return b.next.Name() }

// State reports the breaker state.
func (b *Breaker) State() gobreaker.State { return b.cb.State() }

// Generate forwards to the wrapped client and records its latency.
func (b *Breaker) Generate(ctx context.Context, prompt string) (string, error) {
	start := time.Now()
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, prompt)
	})
	metrics.RecordInferenceLatency(float64(time.Since(start).Milliseconds()))
	if err != nil {
		return "", breakerErr(err)
	}
	return out.(string), nil
}

// Ping bypasses the breaker so a probe can observe recovery.
func (b *Breaker) Ping(ctx context.Context) error {
	return b.next.Ping(ctx)
}

// Close releases the wrapped client when it holds resources.
func (b *Breaker) Close() error {
	if c, ok := b.next.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func breakerErr(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}
