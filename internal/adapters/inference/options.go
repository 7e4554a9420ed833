package inference

import (
	"time"

	"github.com/okian/yecs/pkg/logger"
)

// BreakerOption configures a Breaker.
type BreakerOption func(*Breaker)

// WithMaxFailures sets how many consecutive failures open the breaker.
func WithMaxFailures(n int) BreakerOption {
	return func(b *Breaker) {
		if n > 0 {
			b.maxFailures = uint32(n)
		}
	}
}

// WithOpenTimeout sets how long the breaker stays open before probing.
func WithOpenTimeout(d time.Duration) BreakerOption {
	return func(b *Breaker) {
		if d > 0 {
			b.openTimeout = d
		}
	}
}

// ProbeOption configures a Probe.
type ProbeOption func(*Probe)

// WithProbeInterval sets the time between reachability checks.
func WithProbeInterval(d time.Duration) ProbeOption {
	return func(p *Probe) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithProbeTimeout bounds a single check.
func WithProbeTimeout(d time.Duration) ProbeOption {
	return func(p *Probe) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithProbeLogger overrides the probe logger.
func WithProbeLogger(l logger.Logger) ProbeOption {
	return func(p *Probe) {
		if l != nil {
			p.log = l
		}
	}
}
