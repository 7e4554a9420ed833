package session

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/okian/yecs/internal/adapters/repository"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/pkg/logger"
)

type entry struct {
	sess *Session
	refs int
}

// Manager creates a session on the first subscription for a subject and
// closes it when the last one is released.
type Manager struct {
	dial  DialFunc
	store Store
	s     settings

	mu       sync.Mutex
	sessions map[string]*entry
	closed   bool
}

// NewManager creates a manager. Options apply to every session it starts.
func NewManager(dial DialFunc, store Store, opts ...Option) *Manager {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	if s.log == nil {
		s.log = logger.Get().Named("session")
	}
	return &Manager{
		dial:     dial,
		store:    store,
		s:        s,
		sessions: make(map[string]*entry),
	}
}

// Acquire subscribes to subject, starting its session when needed, and
// waits for the first connection attempt. On a transport failure the
// subscription is still returned alongside the error: the session stays
// in the error state, holding any cached snapshot, until reconnected or
// released.
func (m *Manager) Acquire(ctx context.Context, subject string) (*Subscription, error) {
	if subject == "" {
		return nil, repository.ErrEmptySubject
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrClosed
	}
	e, ok := m.sessions[subject]
	if !ok {
		e = &entry{sess: newSession(subject, m.dial, m.store, m.s, m.forget)}
		m.sessions[subject] = e
		e.sess.start()
	}
	e.refs++
	sess := e.sess
	m.mu.Unlock()

	var sub *Subscription
	sub = sess.subscribe(func() { m.release(sess, sub) })

	if err := sess.waitStarted(ctx); err != nil {
		return sub, err
	}
	if sess.State() == Error {
		return sub, sess.LastError()
	}
	return sub, nil
}

func (m *Manager) release(sess *Session, sub *Subscription) {
	sess.unsubscribe(sub)

	m.mu.Lock()
	e, ok := m.sessions[sess.subject]
	if !ok || e.sess != sess {
		m.mu.Unlock()
		return
	}
	e.refs--
	last := e.refs <= 0
	if last {
		delete(m.sessions, sess.subject)
	}
	m.mu.Unlock()

	if last {
		sess.Close()
	}
}

// forget drops a session that ended on its own.
func (m *Manager) forget(sess *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.sessions[sess.subject]; ok && e.sess == sess {
		delete(m.sessions, sess.subject)
	}
}

// Session returns the live session for subject.
func (m *Manager) Session(subject string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.sessions[subject]
	if !ok {
		return nil, false
	}
	return e.sess, true
}

func (m *Manager) session(subject string) (*Session, error) {
	if sess, ok := m.Session(subject); ok {
		return sess, nil
	}
	return nil, ErrNoSession
}

// Edit forwards an optimistic edit to the subject's session.
func (m *Manager) Edit(ctx context.Context, subject string, mut Mutation) (model.ScoreSnapshot, error) {
	sess, err := m.session(subject)
	if err != nil {
		return model.ScoreSnapshot{}, err
	}
	return sess.Edit(ctx, mut)
}

// Refresh asks the subject's server for a new snapshot.
func (m *Manager) Refresh(ctx context.Context, subject string) error {
	sess, err := m.session(subject)
	if err != nil {
		return err
	}
	return sess.Refresh(ctx)
}

// Reconnect reopens the subject's channel after a transport error.
func (m *Manager) Reconnect(ctx context.Context, subject string) error {
	sess, err := m.session(subject)
	if err != nil {
		return err
	}
	return sess.Reconnect(ctx)
}

// Apply routes a locally computed snapshot through the subject's session
// when one is live, and straight to the store otherwise.
func (m *Manager) Apply(ctx context.Context, snap model.ScoreSnapshot) (repository.Outcome, error) {
	if sess, ok := m.Session(snap.Subject); ok {
		outcome, err := sess.ApplyLocal(ctx, snap)
		if !errors.Is(err, ErrClosed) {
			return outcome, err
		}
	}
	return m.store.Apply(ctx, snap)
}

// Get reads the stored snapshot for subject.
func (m *Manager) Get(ctx context.Context, subject string) (model.ScoreSnapshot, error) {
	return m.store.Get(ctx, subject)
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Statuses lists live sessions ordered by subject.
func (m *Manager) Statuses() []Status {
	m.mu.Lock()
	sessions := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		sessions = append(sessions, e.sess)
	}
	m.mu.Unlock()

	out := make([]Status, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, s.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Subject < out[j].Subject })
	return out
}

// Close ends every session and refuses new subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, e := range m.sessions {
		sessions = append(sessions, e.sess)
	}
	clear(m.sessions)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for _, s := range sessions {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Close()
		}()
	}
	wg.Wait()
}
