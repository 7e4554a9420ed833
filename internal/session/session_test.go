package session_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/yecs/internal/adapters/repository"
	"github.com/okian/yecs/internal/adapters/ws"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/internal/session"
	"github.com/okian/yecs/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	_ = logger.Init()
}

type fakeConn struct {
	frames  chan ws.Envelope
	sent    chan ws.Envelope
	endOnce sync.Once

	mu      sync.Mutex
	err     error
	sendErr error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		frames: make(chan ws.Envelope, 16),
		sent:   make(chan ws.Envelope, 16),
	}
}

func (c *fakeConn) Frames() <-chan ws.Envelope { return c.frames }

func (c *fakeConn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *fakeConn) Send(_ context.Context, event string, payload any) error {
	c.mu.Lock()
	err := c.sendErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	env, err := ws.NewEnvelope(event, payload)
	if err != nil {
		return err
	}
	c.sent <- env
	return nil
}

func (c *fakeConn) Close() error {
	c.end(nil)
	return nil
}

// end simulates the server side going away.
func (c *fakeConn) end(err error) {
	c.endOnce.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.frames)
	})
}

func (c *fakeConn) push(t *testing.T, event string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	c.frames <- ws.Envelope{Event: event, Data: b}
}

func (c *fakeConn) next(event string) (ws.Envelope, bool) {
	deadline := time.After(2 * time.Second)
	for {
		select {
		case env := <-c.sent:
			if env.Event == event {
				return env, true
			}
		case <-deadline:
			return ws.Envelope{}, false
		}
	}
}

func (c *fakeConn) quiet(event string, d time.Duration) bool {
	deadline := time.After(d)
	for {
		select {
		case env := <-c.sent:
			if env.Event == event {
				return false
			}
		case <-deadline:
			return true
		}
	}
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	err   error
}

func (d *fakeDialer) dial(context.Context, string) (session.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := newFakeConn()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) last() *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.conns[len(d.conns)-1]
}

func (d *fakeDialer) fail(err error) {
	d.mu.Lock()
	d.err = err
	d.mu.Unlock()
}

func baseSnapshot(at time.Time) model.ScoreSnapshot {
	factors := model.Factors{}
	for _, c := range model.AllCategories {
		factors[c] = model.CategoryResult{Score: 70}
	}
	snap, err := scoring.NewEngine(nil).Compute(factors, model.IndustryContext{})
	if err != nil {
		panic(err)
	}
	snap.GeneratedAt = at
	return snap
}

func eventually(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func nextUpdate(sub *session.Subscription) (model.ScoreSnapshot, bool) {
	select {
	case s, ok := <-sub.Updates():
		return s, ok
	case <-time.After(2 * time.Second):
		return model.ScoreSnapshot{}, false
	}
}

func TestSessionLifecycle(t *testing.T) {
	convey.Convey("Given a manager over a fake channel", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		d := &fakeDialer{}
		m := session.NewManager(d.dial, store,
			session.WithAckTimeout(time.Hour),
			session.WithLogger(logger.Nop()),
		)
		defer m.Close()

		sub, err := m.Acquire(ctx, "u1")
		convey.So(err, convey.ShouldBeNil)
		conn := d.last()

		convey.Convey("When the session connects", func() {
			env, ok := conn.next(ws.EventSubscribe)

			convey.Convey("Then it should subscribe with the subject id", func() {
				convey.So(ok, convey.ShouldBeTrue)
				var p ws.SubjectPayload
				convey.So(env.Decode(&p), convey.ShouldBeNil)
				convey.So(p.UserID, convey.ShouldEqual, "u1")
				convey.So(sub.Session().State(), convey.ShouldEqual, session.Connected)
				convey.So(sub.Subject(), convey.ShouldEqual, "u1")
			})
		})

		convey.Convey("When the server pushes a snapshot", func() {
			t1 := time.Now().Add(-time.Minute)
			conn.push(t, ws.EventAdvancedUpdated, baseSnapshot(t1))
			got, ok := nextUpdate(sub)

			convey.Convey("Then the subscriber and the store should see it as authoritative", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got.Source, convey.ShouldEqual, model.SourceAuthoritative)
				convey.So(got.Subject, convey.ShouldEqual, "u1")
				stored, err := store.Get(ctx, "u1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(stored.Composite, convey.ShouldEqual, got.Composite)
			})

			convey.Convey("Then an older push should be discarded", func() {
				old := baseSnapshot(t1.Add(-time.Hour))
				old.Composite = 400
				conn.push(t, ws.EventScoreUpdated, old)
				conn.push(t, ws.EventScoreError, ws.ErrorPayload{Message: "ignored"})
				time.Sleep(50 * time.Millisecond)
				stored, _ := store.Get(ctx, "u1")
				convey.So(stored.Composite, convey.ShouldNotEqual, 400)
			})

			convey.Convey("Then a push for another user should be dropped", func() {
				other := map[string]any{"user_id": "u2", "score": 500, "lastUpdated": time.Now()}
				conn.push(t, ws.EventScoreUpdated, other)
				time.Sleep(50 * time.Millisecond)
				stored, _ := store.Get(ctx, "u1")
				convey.So(stored.Composite, convey.ShouldNotEqual, 500)
			})

			convey.Convey("Then an out of range push should be dropped", func() {
				bad := baseSnapshot(time.Now())
				bad.Composite = 900
				conn.push(t, ws.EventScoreUpdated, bad)
				time.Sleep(50 * time.Millisecond)
				stored, _ := store.Get(ctx, "u1")
				convey.So(stored.Composite, convey.ShouldBeLessThanOrEqualTo, model.MaxComposite)
			})

			convey.Convey("Then a push with an out of range category should be dropped", func() {
				bad := baseSnapshot(time.Now())
				bad.Composite = 777
				bad.Factors[model.Financial] = model.CategoryResult{Score: 140, Weight: 0.2}
				conn.push(t, ws.EventScoreUpdated, bad)
				time.Sleep(50 * time.Millisecond)
				stored, _ := store.Get(ctx, "u1")
				convey.So(stored.Composite, convey.ShouldNotEqual, 777)
			})
		})

		convey.Convey("When the server closes the channel cleanly", func() {
			conn.push(t, ws.EventScoreUpdated, baseSnapshot(time.Now()))
			_, _ = nextUpdate(sub)
			conn.end(nil)

			convey.Convey("Then the session should end and clean up", func() {
				select {
				case <-sub.Done():
				case <-time.After(2 * time.Second):
					t.Fatal("subscription not ended")
				}
				convey.So(eventually(func() bool { return m.Count() == 0 }), convey.ShouldBeTrue)
				_, err := store.Get(ctx, "u1")
				convey.So(errors.Is(err, repository.ErrNotFound), convey.ShouldBeTrue)
				convey.So(sub.Session().State(), convey.ShouldEqual, session.Disconnected)
				sub.Release()
			})
		})
	})
}

func TestSessionReleaseRefCount(t *testing.T) {
	convey.Convey("Given two subscribers to one subject", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		d := &fakeDialer{}
		m := session.NewManager(d.dial, store, session.WithLogger(logger.Nop()))
		defer m.Close()

		a, err := m.Acquire(ctx, "u1")
		convey.So(err, convey.ShouldBeNil)
		b, err := m.Acquire(ctx, "u1")
		convey.So(err, convey.ShouldBeNil)
		convey.So(a.Session(), convey.ShouldEqual, b.Session())
		convey.So(m.Count(), convey.ShouldEqual, 1)

		convey.Convey("When one releases twice", func() {
			a.Release()
			a.Release()

			convey.Convey("Then the channel should stay open for the other", func() {
				convey.So(m.Count(), convey.ShouldEqual, 1)
				convey.So(b.Session().State(), convey.ShouldEqual, session.Connected)
				_, open := <-a.Updates()
				convey.So(open, convey.ShouldBeFalse)
			})

			convey.Convey("Then releasing the last one should close the channel", func() {
				b.Release()
				b.Release()
				convey.So(m.Count(), convey.ShouldEqual, 0)
				_, ok := <-d.last().Frames()
				convey.So(ok, convey.ShouldBeFalse)
				convey.So(b.Session().State(), convey.ShouldEqual, session.Disconnected)
			})
		})
	})
}

func TestSessionOptimisticEdits(t *testing.T) {
	convey.Convey("Given a connected session holding a snapshot", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		d := &fakeDialer{}
		m := session.NewManager(d.dial, store,
			session.WithAckTimeout(time.Hour),
			session.WithLogger(logger.Nop()),
		)
		defer m.Close()

		sub, err := m.Acquire(ctx, "u1")
		convey.So(err, convey.ShouldBeNil)
		conn := d.last()
		_, _ = conn.next(ws.EventSubscribe)
		base := baseSnapshot(time.Now().Add(-time.Minute))
		conn.push(t, ws.EventAdvancedUpdated, base)
		_, _ = nextUpdate(sub)

		convey.Convey("When a category is edited", func() {
			snap, err := m.Edit(ctx, "u1", session.Mutation{EditID: "e1", Category: model.Credit, Score: 100})

			convey.Convey("Then an optimistic snapshot should be stored and sent", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(snap.Source, convey.ShouldEqual, model.SourceOptimistic)
				convey.So(snap.EditID, convey.ShouldEqual, "e1")
				convey.So(snap.Composite, convey.ShouldBeGreaterThan, base.Composite)

				env, ok := conn.next(ws.EventUpdate)
				convey.So(ok, convey.ShouldBeTrue)
				var p ws.UpdatePayload
				convey.So(env.Decode(&p), convey.ShouldBeNil)
				convey.So(p.EditID, convey.ShouldEqual, "e1")
				convey.So(p.UserID, convey.ShouldEqual, "u1")
				convey.So(p.Factors[model.Credit].Score, convey.ShouldEqual, 100)

				st := sub.Session().Status()
				convey.So(st.Pending, convey.ShouldEqual, 1)
				convey.So(st.InFlight, convey.ShouldEqual, "e1")
			})

			convey.Convey("Then a second edit should wait for the first", func() {
				_, _ = conn.next(ws.EventUpdate)
				_, err := m.Edit(ctx, "u1", session.Mutation{EditID: "e2", Category: model.Social, Score: 90})
				convey.So(err, convey.ShouldBeNil)
				convey.So(conn.quiet(ws.EventUpdate, 50*time.Millisecond), convey.ShouldBeTrue)

				conn.push(t, ws.EventAdvancedUpdated, baseSnapshot(time.Now().Add(time.Second)))
				env, ok := conn.next(ws.EventUpdate)
				convey.So(ok, convey.ShouldBeTrue)
				var p ws.UpdatePayload
				_ = env.Decode(&p)
				convey.So(p.EditID, convey.ShouldEqual, "e2")
			})

			convey.Convey("Then a newer authoritative push should win and confirm it", func() {
				_, _ = conn.next(ws.EventUpdate)
				auth := baseSnapshot(time.Now().Add(time.Second))
				conn.push(t, ws.EventAdvancedUpdated, auth)

				convey.So(eventually(func() bool {
					return sub.Session().Status().Pending == 0
				}), convey.ShouldBeTrue)
				stored, _ := store.Get(ctx, "u1")
				convey.So(stored.Source, convey.ShouldEqual, model.SourceAuthoritative)
				convey.So(stored.Composite, convey.ShouldEqual, auth.Composite)
				convey.So(stored.EditID, convey.ShouldBeEmpty)
			})
		})

		convey.Convey("When an edit names an unknown category", func() {
			_, err := m.Edit(ctx, "u1", session.Mutation{Category: "luck", Score: 1})
			convey.So(errors.Is(err, model.ErrUnknownCategory), convey.ShouldBeTrue)
		})

		convey.Convey("When editing a subject with no session", func() {
			_, err := m.Edit(ctx, "nobody", session.Mutation{Category: model.Credit})
			convey.So(errors.Is(err, session.ErrNoSession), convey.ShouldBeTrue)
		})
	})

	convey.Convey("Given a session without a snapshot", t, func() {
		d := &fakeDialer{}
		m := session.NewManager(d.dial, repository.NewMemStore(), session.WithLogger(logger.Nop()))
		defer m.Close()
		_, err := m.Acquire(context.Background(), "u1")
		convey.So(err, convey.ShouldBeNil)

		_, err = m.Edit(context.Background(), "u1", session.Mutation{Category: model.Credit, Score: 50})
		convey.So(errors.Is(err, session.ErrNoSnapshot), convey.ShouldBeTrue)
	})
}

func TestSessionAckTimeout(t *testing.T) {
	convey.Convey("Given a short ack timeout", t, func() {
		ctx := context.Background()
		d := &fakeDialer{}
		store := repository.NewMemStore()
		m := session.NewManager(d.dial, store,
			session.WithAckTimeout(30*time.Millisecond),
			session.WithLogger(logger.Nop()),
		)
		defer m.Close()

		sub, _ := m.Acquire(ctx, "u1")
		conn := d.last()
		conn.push(t, ws.EventAdvancedUpdated, baseSnapshot(time.Now().Add(-time.Minute)))
		_, _ = nextUpdate(sub)

		_, err := m.Edit(ctx, "u1", session.Mutation{Category: model.Credit, Score: 95})
		convey.So(err, convey.ShouldBeNil)

		convey.Convey("Then an unconfirmed edit should be dropped", func() {
			convey.So(eventually(func() bool {
				return sub.Session().Status().Pending == 0
			}), convey.ShouldBeTrue)
		})
	})
}

func TestSessionTransportErrors(t *testing.T) {
	convey.Convey("Given a connected session with a pending edit", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		d := &fakeDialer{}
		var mu sync.Mutex
		var transitions []string
		m := session.NewManager(d.dial, store,
			session.WithAckTimeout(time.Hour),
			session.WithLogger(logger.Nop()),
			session.WithStateHook(func(_ *session.Session, from, to session.State) {
				mu.Lock()
				transitions = append(transitions, from.String()+">"+to.String())
				mu.Unlock()
			}),
		)
		defer m.Close()

		sub, _ := m.Acquire(ctx, "u1")
		conn := d.last()
		conn.push(t, ws.EventAdvancedUpdated, baseSnapshot(time.Now().Add(-time.Minute)))
		_, _ = nextUpdate(sub)
		_, err := m.Edit(ctx, "u1", session.Mutation{EditID: "e1", Category: model.Credit, Score: 99})
		convey.So(err, convey.ShouldBeNil)
		_, _ = conn.next(ws.EventUpdate)

		convey.Convey("When the transport fails", func() {
			conn.end(errors.New("connection reset"))

			convey.Convey("Then the session should hold the error, the snapshot and the edit", func() {
				sess := sub.Session()
				convey.So(eventually(func() bool { return sess.State() == session.Error }), convey.ShouldBeTrue)
				convey.So(errors.Is(sess.LastError(), session.ErrTransport), convey.ShouldBeTrue)
				_, err := store.Get(ctx, "u1")
				convey.So(err, convey.ShouldBeNil)
				convey.So(sess.Status().Pending, convey.ShouldEqual, 1)
				convey.So(errors.Is(sess.Refresh(ctx), session.ErrNotConnected), convey.ShouldBeTrue)
			})

			convey.Convey("Then a reconnect should resubscribe and resend the edit", func() {
				sess := sub.Session()
				convey.So(eventually(func() bool { return sess.State() == session.Error }), convey.ShouldBeTrue)
				convey.So(m.Reconnect(ctx, "u1"), convey.ShouldBeNil)
				convey.So(sess.State(), convey.ShouldEqual, session.Connected)
				convey.So(sess.LastError(), convey.ShouldBeNil)

				fresh := d.last()
				convey.So(fresh, convey.ShouldNotEqual, conn)
				_, ok := fresh.next(ws.EventSubscribe)
				convey.So(ok, convey.ShouldBeTrue)
				env, ok := fresh.next(ws.EventUpdate)
				convey.So(ok, convey.ShouldBeTrue)
				var p ws.UpdatePayload
				_ = env.Decode(&p)
				convey.So(p.EditID, convey.ShouldEqual, "e1")

				mu.Lock()
				defer mu.Unlock()
				convey.So(transitions, convey.ShouldContain, "connected>error")
				convey.So(transitions, convey.ShouldContain, "error>reconnecting")
				convey.So(transitions, convey.ShouldContain, "reconnecting>connected")
			})

			convey.Convey("Then a failed reconnect should stay in error", func() {
				sess := sub.Session()
				convey.So(eventually(func() bool { return sess.State() == session.Error }), convey.ShouldBeTrue)
				d.fail(errors.New("refused"))
				err := sess.Reconnect(ctx)
				convey.So(errors.Is(err, session.ErrTransport), convey.ShouldBeTrue)
				convey.So(sess.State(), convey.ShouldEqual, session.Error)
			})
		})

		convey.Convey("When reconnect is asked while connected", func() {
			err := sub.Session().Reconnect(ctx)
			convey.So(errors.Is(err, session.ErrInvalidState), convey.ShouldBeTrue)
		})

		convey.Convey("When the session is released", func() {
			sub.Release()

			convey.Convey("Then pending edits should be dropped and calls should fail", func() {
				sess := sub.Session()
				convey.So(sess.Status().Pending, convey.ShouldEqual, 0)
				convey.So(errors.Is(sess.Refresh(ctx), session.ErrClosed), convey.ShouldBeTrue)
			})
		})
	})

	convey.Convey("Given a server that cannot be reached", t, func() {
		d := &fakeDialer{}
		d.fail(errors.New("refused"))
		m := session.NewManager(d.dial, repository.NewMemStore(), session.WithLogger(logger.Nop()))
		defer m.Close()

		sub, err := m.Acquire(context.Background(), "u1")

		convey.Convey("Then Acquire should return the subscription and a transport error", func() {
			convey.So(errors.Is(err, session.ErrTransport), convey.ShouldBeTrue)
			convey.So(sub, convey.ShouldNotBeNil)
			convey.So(sub.Session().State(), convey.ShouldEqual, session.Error)
			statuses := m.Statuses()
			convey.So(len(statuses), convey.ShouldEqual, 1)
			convey.So(statuses[0].LastError, convey.ShouldContainSubstring, "refused")
		})
	})
}

func TestSessionRefreshAndLocalApply(t *testing.T) {
	convey.Convey("Given a connected session", t, func() {
		ctx := context.Background()
		store := repository.NewMemStore()
		d := &fakeDialer{}
		m := session.NewManager(d.dial, store,
			session.WithRefreshLimit(0.001, 1),
			session.WithLogger(logger.Nop()),
		)
		defer m.Close()
		sub, _ := m.Acquire(ctx, "u1")
		conn := d.last()

		convey.Convey("When refreshing twice in a row", func() {
			first := m.Refresh(ctx, "u1")
			second := m.Refresh(ctx, "u1")

			convey.Convey("Then the second should be throttled", func() {
				convey.So(first, convey.ShouldBeNil)
				_, ok := conn.next(ws.EventRefresh)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(errors.Is(second, session.ErrRateLimited), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a local result is applied through the manager", func() {
			snap := baseSnapshot(time.Now())
			snap.Subject = "u1"
			outcome, err := m.Apply(ctx, snap)

			convey.Convey("Then subscribers should receive it", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(outcome, convey.ShouldEqual, repository.OutcomeApplied)
				got, ok := nextUpdate(sub)
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(got.Composite, convey.ShouldEqual, snap.Composite)
			})
		})

		convey.Convey("When a local result is for a subject with no session", func() {
			snap := baseSnapshot(time.Now())
			snap.Subject = "other"
			outcome, err := m.Apply(ctx, snap)
			convey.So(err, convey.ShouldBeNil)
			convey.So(outcome, convey.ShouldEqual, repository.OutcomeApplied)
			got, err := m.Get(ctx, "other")
			convey.So(err, convey.ShouldBeNil)
			convey.So(got.Composite, convey.ShouldEqual, snap.Composite)
		})
	})

	convey.Convey("Given a closed manager", t, func() {
		m := session.NewManager((&fakeDialer{}).dial, repository.NewMemStore(), session.WithLogger(logger.Nop()))
		m.Close()
		_, err := m.Acquire(context.Background(), "u1")
		convey.So(errors.Is(err, session.ErrClosed), convey.ShouldBeTrue)
		_, err = m.Acquire(context.Background(), "")
		convey.So(err, convey.ShouldNotBeNil)
	})
}
