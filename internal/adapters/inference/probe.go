package inference

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/okian/yecs/pkg/logger"
	"github.com/okian/yecs/pkg/metrics"
)

const (
	defaultProbeInterval = 30 * time.Second
	defaultProbeTimeout  = 5 * time.Second
)

// Pinger is the read-only half of Client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Probe tracks whether the inference collaborator is reachable. A failed
// check only flips the flag; it never surfaces an error to callers.
type Probe struct {
	target    Pinger
	interval  time.Duration
	timeout   time.Duration
	reachable atomic.Bool
	log       logger.Logger
}

// NewProbe creates a probe for target.
func NewProbe(target Pinger, opts ...ProbeOption) *Probe {
	p := &Probe{
		target:   target,
		interval: defaultProbeInterval,
		timeout:  defaultProbeTimeout,
		log:      logger.Get().Named("probe"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Reachable returns the result of the latest check.
func (p *Probe) Reachable() bool { return p.reachable.Load() }

// Check pings once and records the outcome.
func (p *Probe) Check(ctx context.Context) bool {
	cctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err := p.target.Ping(cctx)
	ok := err == nil
	if prev := p.reachable.Swap(ok); prev != ok {
		if ok {
			p.log.Info(ctx, "inference reachable")
		} else {
			p.log.Warn(ctx, "inference unreachable", logger.Error(err))
		}
	}
	metrics.SetInferenceReachable(ok)
	return ok
}

// Run checks immediately and then on every interval until ctx is done.
func (p *Probe) Run(ctx context.Context) {
	p.Check(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Check(ctx)
		}
	}
}
