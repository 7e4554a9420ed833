// Package session keeps a subject's local snapshot in step with the
// authoritative snapshot pushed over a long-lived channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/okian/yecs/internal/adapters/repository"
	"github.com/okian/yecs/internal/adapters/ws"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/okian/yecs/internal/domain/scoring"
	"github.com/okian/yecs/pkg/logger"
	"github.com/okian/yecs/pkg/metrics"
	"golang.org/x/time/rate"
)

// Conn is an open channel to the authoritative server.
type Conn interface {
	Frames() <-chan ws.Envelope
	Err() error
	Send(ctx context.Context, event string, payload any) error
	Close() error
}

// DialFunc opens a channel for subject.
type DialFunc func(ctx context.Context, subject string) (Conn, error)

// Store is the snapshot store a session writes through.
type Store interface {
	Apply(ctx context.Context, snap model.ScoreSnapshot) (repository.Outcome, error)
	Get(ctx context.Context, subject string) (model.ScoreSnapshot, error)
	Delete(ctx context.Context, subject string)
}

type cmdKind int

const (
	cmdEdit cmdKind = iota
	cmdRefresh
	cmdReconnect
	cmdApply
)

type command struct {
	kind  cmdKind
	ctx   context.Context
	mut   Mutation
	snap  model.ScoreSnapshot
	reply chan result
}

type result struct {
	snap    model.ScoreSnapshot
	outcome repository.Outcome
	err     error
}

// Session owns one subject's channel. All inbound frames, local edits,
// local compute results and refreshes run on a single loop goroutine, so a
// subject's store entry has exactly one writer.
type Session struct {
	subject string
	dial    DialFunc
	store   Store
	s       settings
	log     logger.Logger
	limiter *rate.Limiter
	onExit  func(*Session)

	cmds      chan command
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	started   chan struct{}
	done      chan struct{}

	mu       sync.RWMutex
	state    State
	lastErr  error
	pendingN int
	inFlight string

	subsMu     sync.Mutex
	subs       map[*Subscription]struct{}
	subsClosed bool

	// owned by the loop
	conn     Conn
	pending  []Mutation
	sent     bool
	ackTimer *time.Timer
}

func newSession(subject string, dial DialFunc, store Store, s settings, onExit func(*Session)) *Session {
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		subject: subject,
		dial:    dial,
		store:   store,
		s:       s,
		log:     s.log.With(logger.Subject(subject)),
		limiter: rate.NewLimiter(s.refreshRate, s.refreshBurst),
		onExit:  onExit,
		cmds:    make(chan command),
		ctx:     ctx,
		cancel:  cancel,
		started: make(chan struct{}),
		done:    make(chan struct{}),
		subs:    make(map[*Subscription]struct{}),
	}
}

func (s *Session) start() {
	metrics.AddSessionsActive(1)
	go s.run()
}

// Subject returns the subject id.
func (s *Session) Subject() string { return s.subject }

// State returns the current connection state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// LastError returns the most recent transport error, if any.
func (s *Session) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Status returns a snapshot of the session's bookkeeping.
func (s *Session) Status() Status {
	s.mu.RLock()
	st := Status{
		Subject:  s.subject,
		State:    s.state,
		Pending:  s.pendingN,
		InFlight: s.inFlight,
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	s.mu.RUnlock()

	s.subsMu.Lock()
	st.Subscribers = len(s.subs)
	s.subsMu.Unlock()
	return st
}

// Done is closed once the session has torn down.
func (s *Session) Done() <-chan struct{} { return s.done }

// Edit applies m locally as an optimistic snapshot and queues it for the
// server. The returned snapshot is a preview: any later authoritative push
// replaces it.
func (s *Session) Edit(ctx context.Context, m Mutation) (model.ScoreSnapshot, error) {
	r := s.call(ctx, command{kind: cmdEdit, mut: m})
	return r.snap, r.err
}

// Refresh asks the server for a new snapshot. The answer arrives as an
// ordinary push.
func (s *Session) Refresh(ctx context.Context) error {
	return s.call(ctx, command{kind: cmdRefresh}).err
}

// Reconnect reopens the channel after a transport error.
func (s *Session) Reconnect(ctx context.Context) error {
	return s.call(ctx, command{kind: cmdReconnect}).err
}

// ApplyLocal writes a locally computed snapshot through the session loop.
func (s *Session) ApplyLocal(ctx context.Context, snap model.ScoreSnapshot) (repository.Outcome, error) {
	r := s.call(ctx, command{kind: cmdApply, snap: snap})
	return r.outcome, r.err
}

// Close ends the session: the channel is closed, pending edits are dropped,
// the store entry is removed and subscribers are told. Safe to call twice.
// Must not be called from a StateHook.
func (s *Session) Close() {
	s.closeOnce.Do(s.cancel)
	<-s.done
}

func (s *Session) waitStarted(ctx context.Context) error {
	select {
	case <-s.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) call(ctx context.Context, cmd command) result {
	cmd.ctx = ctx
	cmd.reply = make(chan result, 1)

	select {
	case s.cmds <- cmd:
	case <-s.done:
		return result{err: ErrClosed}
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}

	select {
	case r := <-cmd.reply:
		return r
	case <-ctx.Done():
		return result{err: ctx.Err()}
	}
}

func (s *Session) run() {
	defer s.teardown()

	_ = s.connect(s.ctx, Connecting)
	close(s.started)

	refresh := time.NewTicker(s.s.refreshInterval)
	defer refresh.Stop()

	for {
		var frames <-chan ws.Envelope
		if s.conn != nil {
			frames = s.conn.Frames()
		}
		var ack <-chan time.Time
		if s.ackTimer != nil {
			ack = s.ackTimer.C
		}

		select {
		case <-s.ctx.Done():
			return
		case cmd := <-s.cmds:
			r := s.handle(cmd)
			s.syncCounters()
			cmd.reply <- r
		case env, ok := <-frames:
			if !ok {
				if s.channelEnded() {
					return
				}
				continue
			}
			s.handleFrame(env)
		case <-ack:
			s.ackTimer = nil
			s.ackExpired()
		case <-refresh.C:
			if s.State() == Connected {
				_ = s.refresh(s.ctx)
			}
		}
		s.syncCounters()
	}
}

func (s *Session) handle(cmd command) result {
	switch cmd.kind {
	case cmdEdit:
		snap, err := s.edit(cmd.ctx, cmd.mut)
		return result{snap: snap, err: err}
	case cmdRefresh:
		return result{err: s.refresh(cmd.ctx)}
	case cmdReconnect:
		if st := s.State(); st != Error {
			return result{err: fmt.Errorf("%w: reconnect from %s", ErrInvalidState, st)}
		}
		metrics.RecordReconnectAttempt()
		return result{err: s.connect(cmd.ctx, Reconnecting)}
	case cmdApply:
		snap := cmd.snap.Clone()
		snap.Subject = s.subject
		outcome, err := s.apply(cmd.ctx, snap)
		return result{snap: snap, outcome: outcome, err: err}
	default:
		return result{err: fmt.Errorf("unknown command %d", cmd.kind)}
	}
}

// connect dials, subscribes and moves to Connected, or records the failure
// and moves to Error.
func (s *Session) connect(ctx context.Context, via State) error {
	s.setState(via, nil)

	dctx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	conn, err := s.dial(dctx, s.subject)
	if err != nil {
		return s.fail(err)
	}
	if err := conn.Send(dctx, ws.EventSubscribe, ws.SubjectPayload{UserID: s.subject}); err != nil {
		_ = conn.Close()
		return s.fail(err)
	}

	s.conn = conn
	s.sent = false
	s.setState(Connected, nil)
	s.clearError()
	s.flush(s.ctx)
	return nil
}

// fail drops the channel and enters Error. The stored snapshot and pending
// edits survive.
func (s *Session) fail(cause error) error {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.stopAck()
	s.sent = false

	err := cause
	if !errors.Is(err, ErrTransport) {
		err = fmt.Errorf("%w: %w", ErrTransport, cause)
	}
	s.log.Warn(context.Background(), "channel failed", logger.Error(err))
	s.setState(Error, err)
	return err
}

// channelEnded handles the frames channel closing. It reports whether the
// session should end.
func (s *Session) channelEnded() bool {
	err := s.conn.Err()
	s.conn = nil
	if err == nil {
		s.log.Info(context.Background(), "channel closed by server")
		return true
	}
	_ = s.fail(err)
	return false
}

func (s *Session) handleFrame(env ws.Envelope) {
	ctx := s.ctx
	switch {
	case env.IsSnapshot():
		snap, userID, err := env.SnapshotPayload()
		if err != nil {
			metrics.RecordFrameDropped("malformed")
			s.log.Warn(ctx, "dropping undecodable snapshot", logger.Error(err))
			return
		}
		if (userID != "" && userID != s.subject) || (snap.Subject != "" && snap.Subject != s.subject) {
			metrics.RecordFrameDropped("subject_mismatch")
			s.log.Debug(ctx, "dropping snapshot for another subject", logger.String("user_id", userID))
			return
		}
		if !inRange(snap) {
			metrics.RecordFrameDropped("out_of_range")
			s.log.Warn(ctx, "dropping snapshot with out of range score", logger.Int("composite", snap.Composite))
			return
		}
		snap.Subject = s.subject
		snap.Source = model.SourceAuthoritative
		snap.EditID = ""
		if snap.GeneratedAt.IsZero() {
			snap.GeneratedAt = s.s.clock()
		}
		if outcome, _ := s.apply(ctx, snap); outcome == repository.OutcomeApplied {
			s.confirm(snap.GeneratedAt)
		}

	case env.Event == ws.EventScoreError:
		var p ws.ErrorPayload
		_ = env.Decode(&p)
		s.log.Warn(ctx, "server reported score error", logger.String("message", p.Message))

	default:
		metrics.RecordFrameDropped("unknown_event")
		s.log.Debug(ctx, "ignoring frame", logger.String("event", env.Event))
	}
}

func (s *Session) apply(ctx context.Context, snap model.ScoreSnapshot) (repository.Outcome, error) {
	outcome, err := s.store.Apply(ctx, snap)
	if err != nil {
		return outcome, err
	}
	if outcome == repository.OutcomeApplied {
		s.notify(snap)
	}
	return outcome, nil
}

func (s *Session) edit(ctx context.Context, m Mutation) (model.ScoreSnapshot, error) {
	if m.At.IsZero() {
		m.At = s.s.clock()
	}
	if m.EditID == "" {
		m.EditID = s.s.newEditID()
	}

	cur, err := s.store.Get(ctx, s.subject)
	if errors.Is(err, repository.ErrNotFound) {
		return model.ScoreSnapshot{}, ErrNoSnapshot
	}
	if err != nil {
		return model.ScoreSnapshot{}, err
	}

	next, err := m.apply(s.s.engine, cur)
	if err != nil {
		return model.ScoreSnapshot{}, err
	}
	outcome, err := s.apply(ctx, next)
	if err != nil {
		return model.ScoreSnapshot{}, err
	}
	if outcome == repository.OutcomeStale {
		return model.ScoreSnapshot{}, ErrStaleEdit
	}

	m.result = next.Factors[m.Category]
	s.pending = append(s.pending, m)
	s.flush(ctx)
	return next, nil
}

// flush sends the head of the queue if nothing is in flight.
func (s *Session) flush(ctx context.Context) {
	if s.sent || len(s.pending) == 0 || s.conn == nil {
		return
	}
	m := s.pending[0]
	payload := ws.UpdatePayload{
		UserID:  s.subject,
		EditID:  m.EditID,
		At:      m.At,
		Factors: model.Factors{m.Category: m.result},
	}
	if err := s.conn.Send(ctx, ws.EventUpdate, payload); err != nil {
		_ = s.fail(err)
		return
	}
	s.sent = true
	s.ackTimer = time.NewTimer(s.s.ackTimeout)
	metrics.RecordMutationSent()
}

// confirm resolves the in-flight edit when an authoritative snapshot at
// least as new as the edit lands.
func (s *Session) confirm(at time.Time) {
	if !s.sent || len(s.pending) == 0 || at.Before(s.pending[0].At) {
		return
	}
	s.pending = s.pending[1:]
	s.sent = false
	s.stopAck()
	s.flush(s.ctx)
}

func (s *Session) ackExpired() {
	if !s.sent || len(s.pending) == 0 {
		return
	}
	m := s.pending[0]
	s.pending = s.pending[1:]
	s.sent = false
	metrics.RecordMutationsDropped(1)
	s.log.Warn(s.ctx, "edit not confirmed in time", logger.String("edit_id", m.EditID))
	s.flush(s.ctx)
}

func (s *Session) stopAck() {
	if s.ackTimer != nil {
		s.ackTimer.Stop()
		s.ackTimer = nil
	}
}

func (s *Session) refresh(ctx context.Context) error {
	if s.conn == nil || s.State() != Connected {
		metrics.RecordRefresh("not_connected")
		return ErrNotConnected
	}
	if !s.limiter.Allow() {
		metrics.RecordRefresh("rate_limited")
		return ErrRateLimited
	}
	if err := s.conn.Send(ctx, ws.EventRefresh, ws.SubjectPayload{UserID: s.subject}); err != nil {
		metrics.RecordRefresh("error")
		return s.fail(err)
	}
	metrics.RecordRefresh("sent")
	return nil
}

func (s *Session) teardown() {
	if s.conn != nil {
		_ = s.conn.Close()
		s.conn = nil
	}
	s.stopAck()
	if n := len(s.pending); n > 0 {
		metrics.RecordMutationsDropped(n)
		s.pending = nil
	}
	s.sent = false
	s.store.Delete(context.Background(), s.subject)
	s.setState(Disconnected, nil)
	s.syncCounters()
	s.closeSubscribers()

	metrics.AddSessionsActive(-1)
	close(s.done)
	if s.onExit != nil {
		s.onExit(s)
	}
}

func (s *Session) setState(to State, err error) {
	s.mu.Lock()
	from := s.state
	s.state = to
	if err != nil {
		s.lastErr = err
	}
	s.mu.Unlock()

	if from == to {
		return
	}
	metrics.RecordSessionTransition(from.String(), to.String())
	s.log.Debug(context.Background(), "state changed",
		logger.String("from", from.String()),
		logger.String("to", to.String()),
	)
	if s.s.hook != nil {
		s.s.hook(s, from, to)
	}
}

func (s *Session) clearError() {
	s.mu.Lock()
	s.lastErr = nil
	s.mu.Unlock()
}

func (s *Session) syncCounters() {
	s.mu.Lock()
	s.pendingN = len(s.pending)
	s.inFlight = ""
	if s.sent && len(s.pending) > 0 {
		s.inFlight = s.pending[0].EditID
	}
	s.mu.Unlock()
}

func defaultSettings() settings {
	return settings{
		engine:          scoring.NewEngine(nil),
		ackTimeout:      defaultAckTimeout,
		refreshInterval: defaultRefreshInterval,
		refreshRate:     defaultRefreshRate,
		refreshBurst:    defaultRefreshBurst,
		clock:           time.Now,
		newEditID:       uuid.NewString,
	}
}

func inRange(snap model.ScoreSnapshot) bool {
	if snap.Composite < model.MinComposite || snap.Composite > model.MaxComposite {
		return false
	}
	for _, f := range snap.Factors {
		if f.Score < 0 || f.Score > 100 {
			return false
		}
	}
	return true
}
