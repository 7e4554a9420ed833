package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/pkg/logger"
	"github.com/okian/yecs/pkg/metrics"
)

const defaultCacheTimeout = 500 * time.Millisecond

// MemStore is the in-memory Store. Snapshots are cloned on the way in and
// on the way out so callers never share factor maps.
type MemStore struct {
	mu    sync.RWMutex
	snaps map[string]model.ScoreSnapshot

	cache        Cache
	cacheTimeout time.Duration
	log          logger.Logger
}

// NewMemStore creates an empty store.
func NewMemStore(opts ...Option) *MemStore {
	s := &MemStore{
		snaps:        make(map[string]model.ScoreSnapshot),
		cacheTimeout: defaultCacheTimeout,
		log:          logger.Get().Named("store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Apply implements Store. Equal timestamps are applied.
func (s *MemStore) Apply(ctx context.Context, snap model.ScoreSnapshot) (Outcome, error) {
	if snap.Subject == "" {
		return OutcomeStale, ErrEmptySubject
	}

	s.mu.Lock()
	if cur, ok := s.snaps[snap.Subject]; ok && snap.GeneratedAt.Before(cur.GeneratedAt) {
		s.mu.Unlock()
		metrics.RecordSnapshotStale()
		s.log.Debug(ctx, "stale snapshot discarded",
			logger.Subject(snap.Subject),
			logger.Time("incoming", snap.GeneratedAt),
			logger.Time("stored", cur.GeneratedAt),
		)
		return OutcomeStale, nil
	}
	s.snaps[snap.Subject] = snap.Clone()
	n := len(s.snaps)
	s.mu.Unlock()

	metrics.RecordSnapshotApplied(string(snap.Source), snap.Composite)
	metrics.UpdateStoreSubjects(n)

	// cached snapshots came from the cache; writing them back is pointless
	// and optimistic ones are not yet confirmed.
	if s.cache != nil && snap.Source != model.SourceCached && snap.Source != model.SourceOptimistic {
		s.saveToCache(ctx, snap)
	}
	return OutcomeApplied, nil
}

func (s *MemStore) saveToCache(ctx context.Context, snap model.ScoreSnapshot) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cacheTimeout)
	defer cancel()
	if err := s.cache.Save(cctx, snap); err != nil {
		s.log.Warn(ctx, "cache save failed", logger.Subject(snap.Subject), logger.Error(err))
	}
}

// Get implements Store.
func (s *MemStore) Get(_ context.Context, subject string) (model.ScoreSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[subject]
	if !ok {
		return model.ScoreSnapshot{}, fmt.Errorf("%w: %s", ErrNotFound, subject)
	}
	return snap.Clone(), nil
}

// Delete implements Store. The cache keeps its copy as the offline seed.
func (s *MemStore) Delete(_ context.Context, subject string) {
	s.mu.Lock()
	delete(s.snaps, subject)
	n := len(s.snaps)
	s.mu.Unlock()
	metrics.UpdateStoreSubjects(n)
}

// Count implements Store.
func (s *MemStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.snaps)
}

// Subjects lists held subjects in lexical order.
func (s *MemStore) Subjects(_ context.Context) []string {
	s.mu.RLock()
	out := make([]string, 0, len(s.snaps))
	for id := range s.snaps {
		out = append(out, id)
	}
	s.mu.RUnlock()
	sort.Strings(out)
	return out
}

// Seed loads the last-known snapshot for subject from the cache and applies
// it with Source=cached. A newer snapshot already in the store wins.
func (s *MemStore) Seed(ctx context.Context, subject string) (Outcome, error) {
	if s.cache == nil {
		return OutcomeStale, ErrNoCache
	}
	cctx, cancel := context.WithTimeout(ctx, s.cacheTimeout)
	defer cancel()

	snap, err := s.cache.Load(cctx, subject)
	if err != nil {
		return OutcomeStale, err
	}
	snap.Subject = subject
	snap.Source = model.SourceCached
	snap.EditID = ""
	return s.Apply(ctx, snap)
}
