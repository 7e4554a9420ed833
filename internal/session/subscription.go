package session

import (
	"sync"

	"github.com/okian/yecs/internal/domain/model"
)

// Subscription is one consumer's interest in a subject. Updates carries
// the latest applied snapshot; a slow reader only misses intermediate
// values. Both channels close when the subscription ends.
type Subscription struct {
	session *Session
	updates chan model.ScoreSnapshot
	done    chan struct{}

	closeOnce   sync.Once
	release     func()
	releaseOnce sync.Once
}

// Updates returns applied snapshots, newest last.
func (sub *Subscription) Updates() <-chan model.ScoreSnapshot { return sub.updates }

// Done is closed when no further updates will arrive.
func (sub *Subscription) Done() <-chan struct{} { return sub.done }

// Session returns the session behind this subscription.
func (sub *Subscription) Session() *Session { return sub.session }

// Subject returns the subscribed subject.
func (sub *Subscription) Subject() string { return sub.session.subject }

// Release gives up interest. The channel closes once the last
// subscription for the subject is released. Calling it again is a no-op.
func (sub *Subscription) Release() {
	sub.releaseOnce.Do(func() {
		if sub.release != nil {
			sub.release()
		}
	})
}

func (sub *Subscription) close() {
	sub.closeOnce.Do(func() {
		close(sub.done)
		close(sub.updates)
	})
}

// offer replaces any unread value with snap. Callers hold subsMu.
func (sub *Subscription) offer(snap model.ScoreSnapshot) {
	select {
	case sub.updates <- snap:
		return
	default:
	}
	select {
	case <-sub.updates:
	default:
	}
	select {
	case sub.updates <- snap:
	default:
	}
}

func (s *Session) subscribe(release func()) *Subscription {
	sub := &Subscription{
		session: s,
		updates: make(chan model.ScoreSnapshot, updatesBuffer),
		done:    make(chan struct{}),
		release: release,
	}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	if s.subsClosed {
		sub.close()
		return sub
	}
	s.subs[sub] = struct{}{}
	if snap, err := s.store.Get(s.ctx, s.subject); err == nil {
		sub.offer(snap)
	}
	return sub
}

func (s *Session) unsubscribe(sub *Subscription) {
	s.subsMu.Lock()
	delete(s.subs, sub)
	s.subsMu.Unlock()
	sub.close()
}

func (s *Session) notify(snap model.ScoreSnapshot) {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for sub := range s.subs {
		sub.offer(snap.Clone())
	}
}

func (s *Session) closeSubscribers() {
	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	s.subsClosed = true
	for sub := range s.subs {
		sub.close()
	}
	clear(s.subs)
}
