// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/models"
	"github.com/danielhkuo/retroboard/store"
)

// Op is a board operation run against a private copy of the state.
type Op func(st *engine.State) (*engine.Result, error)

// Sequencer serializes every operation on one board. A single goroutine
// owns the state; callers hand it closures through the inbox.
type Sequencer struct {
	id     string
	engine *engine.Engine
	store  store.Store
	log    *slog.Logger
	cfg    Config

	inbox chan func()
	done  chan struct{}
	gone  atomic.Bool
	// evict drops the sequencer from its hub.
	evict func()

	// owned by the run goroutine
	state   *engine.State
	version int64
	seq     uint64
	halted  error
	subs    map[*Subscription]struct{}
}

func newSequencer(eng *engine.Engine, s store.Store, cfg Config, logger *slog.Logger, st *engine.State, version int64) *Sequencer {
	return &Sequencer{
		id:      st.Board.ID,
		engine:  eng,
		store:   s,
		log:     logger.With("board_id", st.Board.ID),
		cfg:     cfg,
		inbox:   make(chan func(), cfg.InboxSize),
		done:    make(chan struct{}),
		state:   st,
		version: version,
		subs:    make(map[*Subscription]struct{}),
	}
}

// ID returns the board id.
func (s *Sequencer) ID() string {
	return s.id
}

func (s *Sequencer) run() {
	for {
		select {
		case fn := <-s.inbox:
			fn()
		case <-s.done:
			return
		}
	}
}

// enqueue posts fn to the actor. It fails fast once the board is gone.
func (s *Sequencer) enqueue(fn func()) error {
	return s.enqueueCtx(context.Background(), fn)
}

func (s *Sequencer) enqueueCtx(ctx context.Context, fn func()) error {
	if s.gone.Load() {
		return s.goneErr()
	}
	select {
	case s.inbox <- fn:
		return nil
	case <-s.done:
		return s.goneErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sequencer) goneErr() error {
	return fmt.Errorf("%w: board %s", engine.ErrBoardGone, s.id)
}

// call runs fn on the actor and waits for it to finish.
func (s *Sequencer) call(ctx context.Context, fn func() error) error {
	reply := make(chan error, 1)
	if err := s.enqueueCtx(ctx, func() { reply <- fn() }); err != nil {
		return err
	}
	select {
	case err := <-reply:
		return err
	case <-s.done:
		return s.goneErr()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Do applies op. A request that was queued when the board was deleted
// fails with ErrBoardGone.
func (s *Sequencer) Do(ctx context.Context, op Op) (*engine.Result, error) {
	var res *engine.Result
	err := s.call(ctx, func() error {
		var err error
		res, err = s.apply(ctx, op)
		return err
	})
	return res, err
}

// Apply runs a client command on behalf of userID.
func (s *Sequencer) Apply(ctx context.Context, userID string, cmd models.Command) (*engine.Result, error) {
	return s.Do(ctx, func(st *engine.State) (*engine.Result, error) {
		return s.engine.Apply(st, userID, cmd)
	})
}

// View runs fn against the live state. fn must not keep references to it.
func (s *Sequencer) View(ctx context.Context, fn func(st *engine.State) error) error {
	return s.call(ctx, func() error {
		if s.gone.Load() {
			return s.goneErr()
		}
		return fn(s.state)
	})
}

// apply is the single mutation path: copy, operate, verify, commit, swap,
// broadcast. Nothing is published unless every step succeeded.
func (s *Sequencer) apply(ctx context.Context, op Op) (*engine.Result, error) {
	if s.gone.Load() {
		return nil, s.goneErr()
	}
	if s.halted != nil {
		return nil, fmt.Errorf("board %s halted: %w", s.id, s.halted)
	}

	for attempt := 0; ; attempt++ {
		next := s.state.Clone()
		res, err := op(next)
		if err != nil {
			return nil, err
		}
		if !res.Changed() {
			return res, nil
		}

		if err := engine.Verify(next); err != nil {
			s.halted = err
			s.log.Error("Board state corrupted, halting", "error", err)
			return nil, err
		}

		version, err := s.store.Commit(context.WithoutCancel(ctx), next, s.version, res.Dirty)
		if errors.Is(err, engine.ErrConflict) {
			if attempt >= s.cfg.MaxRetries {
				s.log.Error("Gave up after repeated version conflicts", "attempts", attempt+1)
				return nil, fmt.Errorf("%w: board %s is contended, try again", engine.ErrConflict, s.id)
			}
			s.log.Warn("Version conflict, reloading board", "version", s.version)
			if err := s.reload(ctx); err != nil {
				return nil, err
			}
			continue
		}
		if errors.Is(err, engine.ErrBoardGone) {
			s.vanished()
			return nil, s.goneErr()
		}
		if err != nil {
			return nil, fmt.Errorf("failed to commit board %s: %w", s.id, err)
		}

		s.state, s.version = next, version
		s.broadcast(res.Events)
		for _, userID := range res.Banned {
			s.dropUser(userID)
		}
		return res, nil
	}
}

// reload replaces the state with the stored one and resyncs every
// subscriber with a fresh INIT.
func (s *Sequencer) reload(ctx context.Context) error {
	st, version, err := s.store.Load(context.WithoutCancel(ctx), s.id)
	if err != nil {
		if errors.Is(err, engine.ErrNotFound) {
			s.vanished()
			return s.goneErr()
		}
		return fmt.Errorf("failed to reload board %s: %w", s.id, err)
	}
	s.state, s.version = st, version

	for sub := range s.subs {
		if !sub.watcher {
			s.sendInit(sub)
		}
	}
	return nil
}

// broadcast numbers events and pushes them to every subscriber. Slow
// subscribers are dropped and must reconnect for a fresh INIT.
func (s *Sequencer) broadcast(events []models.Event) {
	for _, ev := range events {
		s.seq++
		ev.Seq = s.seq
		for sub := range s.subs {
			if !sub.wants(ev) {
				continue
			}
			if !sub.deliver(newViewer(s.state, sub.UserID).redact(ev)) {
				s.log.Warn("Dropping slow subscriber", "user_id", sub.UserID, "seq", ev.Seq)
				s.remove(sub)
			}
		}
	}
}

func (s *Sequencer) sendInit(sub *Subscription) {
	ev := models.Event{Type: models.EventInit, Seq: s.seq, Data: s.state.Init()}
	if !sub.deliver(newViewer(s.state, sub.UserID).redact(ev)) {
		s.remove(sub)
	}
}

// remove closes a subscription and schedules the presence update when it
// was the user's last board channel.
func (s *Sequencer) remove(sub *Subscription) {
	if _, ok := s.subs[sub]; !ok {
		return
	}
	delete(s.subs, sub)
	close(sub.events)

	if !sub.watcher {
		userID := sub.UserID
		go s.enqueue(func() { s.disconnected(userID) })
	}
}

func (s *Sequencer) dropUser(userID string) {
	for sub := range s.subs {
		if sub.UserID == userID {
			s.remove(sub)
		}
	}
}

func (s *Sequencer) connectedChannels(userID string) int {
	n := 0
	for sub := range s.subs {
		if sub.UserID == userID && !sub.watcher {
			n++
		}
	}
	return n
}

func (s *Sequencer) disconnected(userID string) {
	if s.connectedChannels(userID) > 0 {
		return
	}
	_, err := s.apply(context.Background(), func(st *engine.State) (*engine.Result, error) {
		return s.engine.SetConnected(st, userID, false)
	})
	if err != nil && !errors.Is(err, engine.ErrNotFound) && !errors.Is(err, engine.ErrBoardGone) {
		s.log.Warn("Failed to mark participant disconnected", "user_id", userID, "error", err)
	}
}

func (s *Sequencer) subscribe(userID string, watcher bool) *Subscription {
	sub := &Subscription{
		UserID:  userID,
		watcher: watcher,
		events:  make(chan models.Event, s.cfg.SubscriberBuffer),
		seq:     s,
	}
	s.subs[sub] = struct{}{}
	return sub
}

// Join runs admission for userID without opening a channel.
func (s *Sequencer) Join(ctx context.Context, userID, passphrase string) (engine.JoinOutcome, error) {
	var out engine.JoinOutcome
	_, err := s.Do(ctx, func(st *engine.State) (*engine.Result, error) {
		o, res, err := s.engine.Join(st, userID, passphrase)
		out = o
		return res, err
	})
	return out, err
}

// Connect admits userID and, when the outcome is ready, marks the
// participant connected and opens a board channel whose first event is
// INIT. Other outcomes return no subscription.
func (s *Sequencer) Connect(ctx context.Context, userID, passphrase string) (engine.JoinOutcome, *Subscription, error) {
	var (
		out engine.JoinOutcome
		sub *Subscription
	)
	err := s.call(ctx, func() error {
		_, err := s.apply(ctx, func(st *engine.State) (*engine.Result, error) {
			o, res, err := s.engine.Join(st, userID, passphrase)
			out = o
			if err != nil || o.State != models.AccessStateReady {
				return res, err
			}
			conn, err := s.engine.SetConnected(st, userID, true)
			if err != nil {
				return nil, err
			}
			res.Events = append(res.Events, conn.Events...)
			res.Dirty |= conn.Dirty
			if p, ok := st.Participant(userID); ok {
				out.Participant = &p
			}
			return res, nil
		})
		if err != nil || out.State != models.AccessStateReady {
			return err
		}
		sub = s.subscribe(userID, false)
		s.sendInit(sub)
		return nil
	})
	return out, sub, err
}

// WatchRequest opens a channel that reports the resolution of userID's
// join request. A request that is already resolved is reported at once.
func (s *Sequencer) WatchRequest(ctx context.Context, userID string) (*Subscription, error) {
	var sub *Subscription
	err := s.call(ctx, func() error {
		if s.gone.Load() {
			return s.goneErr()
		}
		var req *models.JoinRequest
		for _, r := range s.state.Requests {
			if r.UserID == userID {
				req = &r
				break
			}
		}
		if req == nil {
			return fmt.Errorf("%w: no join request from %s", engine.ErrNotFound, userID)
		}

		sub = s.subscribe(userID, true)
		if req.Status != models.RequestPending {
			sub.deliver(models.Event{Type: models.EventRequestUpdated, Seq: s.seq, Data: *req})
		}
		return nil
	})
	return sub, err
}

// Snapshot returns the board as userID may see it. Only participants may
// read a board.
func (s *Sequencer) Snapshot(ctx context.Context, userID string) (models.InitPayload, error) {
	var snap models.InitPayload
	err := s.View(ctx, func(st *engine.State) error {
		if _, ok := st.Participant(userID); !ok {
			return fmt.Errorf("%w: user %s is not a participant of board %s", engine.ErrForbidden, userID, s.id)
		}
		ev := newViewer(st, userID).redact(models.Event{Type: models.EventInit, Data: st.Init()})
		snap = ev.Data.(models.InitPayload)
		return nil
	})
	return snap, err
}

// destroy marks the board gone, tells every subscriber and stops the actor.
// Requests still queued fail with ErrBoardGone.
func (s *Sequencer) destroy() {
	if !s.gone.CompareAndSwap(false, true) {
		return
	}
	select {
	case s.inbox <- func() { s.shutdown(true) }:
	case <-s.done:
	}
}

// stop ends the actor without deleting the board.
func (s *Sequencer) stop() {
	if !s.gone.CompareAndSwap(false, true) {
		return
	}
	select {
	case s.inbox <- func() { s.shutdown(false) }:
	case <-s.done:
	}
}

// vanished runs on the actor when the store no longer has the board,
// which happens when it was deleted behind this sequencer's back.
func (s *Sequencer) vanished() {
	if !s.gone.CompareAndSwap(false, true) {
		return
	}
	s.log.Warn("Board missing from store, shutting down")
	s.shutdown(true)
	if s.evict != nil {
		s.evict()
	}
}

// shutdown closes every channel and the actor. Runs on the actor.
func (s *Sequencer) shutdown(notify bool) {
	if notify {
		s.seq++
	}
	ev := models.Event{Type: models.EventBoardDeleted, Seq: s.seq}
	for sub := range s.subs {
		if notify {
			sub.deliver(ev)
		}
		delete(s.subs, sub)
		close(sub.events)
	}
	close(s.done)
}
