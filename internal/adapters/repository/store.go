// Package repository holds the snapshot store and its last-known cache.
package repository

import (
	"context"

	"github.com/okian/yecs/internal/domain/model"
)

// Outcome reports what Apply did with a snapshot.
type Outcome int

const (
	// OutcomeApplied means the snapshot replaced the stored one.
	OutcomeApplied Outcome = iota
	// OutcomeStale means the snapshot was older than the stored one and was discarded.
	OutcomeStale
)

func (o Outcome) String() string {
	switch o {
	case OutcomeApplied:
		return "applied"
	case OutcomeStale:
		return "stale"
	default:
		return "unknown"
	}
}

// Store keeps at most one snapshot per subject.
type Store interface {
	// Apply stores snap unless its GeneratedAt is strictly older than the
	// stored snapshot for the same subject.
	Apply(ctx context.Context, snap model.ScoreSnapshot) (Outcome, error)

	// Get returns a copy of the stored snapshot or ErrNotFound.
	Get(ctx context.Context, subject string) (model.ScoreSnapshot, error)

	// Delete drops the subject. Deleting an unknown subject is a no-op.
	Delete(ctx context.Context, subject string)

	// Count returns the number of subjects held.
	Count(ctx context.Context) int
}

// Cache persists last-known snapshots across process restarts.
type Cache interface {
	Save(ctx context.Context, snap model.ScoreSnapshot) error
	Load(ctx context.Context, subject string) (model.ScoreSnapshot, error)
	Delete(ctx context.Context, subject string) error
}
