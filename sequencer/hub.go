// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package sequencer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/models"
	"github.com/danielhkuo/retroboard/store"
)

// Config tunes the sequencers started by a Hub.
type Config struct {
	// SubscriberBuffer is the number of events a channel may lag behind
	// before it is dropped.
	SubscriberBuffer int
	InboxSize        int
	// MaxRetries bounds reload-and-retry rounds on version conflicts.
	MaxRetries int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		SubscriberBuffer: 64,
		InboxSize:        64,
		MaxRetries:       3,
	}
}

// Hub owns the sequencers of all loaded boards. Boards are loaded on first
// use and stay resident until deleted or the hub is closed.
type Hub struct {
	engine *engine.Engine
	store  store.Store
	cfg    Config
	log    *slog.Logger
	loads  singleflight.Group

	mu     sync.Mutex
	boards map[string]*Sequencer

	// deleting holds boards whose store delete has not finished yet.
	deleting map[string]struct{}
	// deletes counts finished deletes. A load that straddles one is redone.
	deletes  uint64
}

// NewHub creates a hub. A nil logger means slog.Default().
func NewHub(eng *engine.Engine, s store.Store, cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := DefaultConfig()
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = defaults.SubscriberBuffer
	}
	if cfg.InboxSize <= 0 {
		cfg.InboxSize = defaults.InboxSize
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = defaults.MaxRetries
	}
	return &Hub{
		engine:   eng,
		store:    s,
		cfg:      cfg,
		log:      logger,
		boards:   make(map[string]*Sequencer),
		deleting: make(map[string]struct{}),
	}
}

// Engine returns the engine shared by all sequencers.
func (h *Hub) Engine() *engine.Engine {
	return h.engine
}

// CreateBoard builds and stores a new board owned by owner.
func (h *Hub) CreateBoard(ctx context.Context, owner string, req models.CreateBoardRequest) (models.Board, error) {
	st, err := h.engine.NewBoard(owner, req)
	if err != nil {
		return models.Board{}, err
	}
	if err := h.store.Create(ctx, st); err != nil {
		return models.Board{}, fmt.Errorf("failed to store board: %w", err)
	}

	h.log.Info("Board created", "board_id", st.Board.ID, "user_id", owner, "access_policy", st.Board.AccessPolicy)
	return st.Board, nil
}

// Board returns the sequencer for boardID, loading the board if needed.
// Unknown boards wrap engine.ErrNotFound; a board that is being deleted
// wraps engine.ErrBoardGone.
func (h *Hub) Board(ctx context.Context, boardID string) (*Sequencer, error) {
	h.mu.Lock()
	s, err := h.resident(boardID)
	h.mu.Unlock()
	if s != nil || err != nil {
		return s, err
	}

	// Concurrent lookups of one board share a single load. The store is
	// read outside h.mu so other boards stay reachable meanwhile.
	v, err, _ := h.loads.Do(boardID, func() (any, error) {
		return h.load(context.WithoutCancel(ctx), boardID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Sequencer), nil
}

// resident returns the loaded sequencer for boardID, if any. h.mu must be held.
func (h *Hub) resident(boardID string) (*Sequencer, error) {
	if _, ok := h.deleting[boardID]; ok {
		return nil, fmt.Errorf("%w: board %s is being deleted", engine.ErrBoardGone, boardID)
	}
	return h.boards[boardID], nil
}

func (h *Hub) load(ctx context.Context, boardID string) (*Sequencer, error) {
	for {
		h.mu.Lock()
		s, err := h.resident(boardID)
		deletes := h.deletes
		h.mu.Unlock()
		if s != nil || err != nil {
			return s, err
		}

		st, version, err := h.store.Load(ctx, boardID)
		if err != nil {
			return nil, err
		}

		// No channel survives a restart.
		var stale bool
		for i := range st.Participants {
			if st.Participants[i].Connected {
				st.Participants[i].Connected = false
				stale = true
			}
		}
		if stale {
			version, err = h.store.Commit(ctx, st, version, engine.DirtyParticipants)
			if errors.Is(err, engine.ErrBoardGone) {
				return nil, fmt.Errorf("%w: board %s", engine.ErrNotFound, boardID)
			}
			if err != nil {
				return nil, fmt.Errorf("failed to reset presence on board %s: %w", boardID, err)
			}
		}

		h.mu.Lock()
		if s, err := h.resident(boardID); s != nil || err != nil {
			h.mu.Unlock()
			return s, err
		}
		if h.deletes != deletes {
			// A delete finished while this copy was read; it may be stale.
			h.mu.Unlock()
			continue
		}
		s = newSequencer(h.engine, h.store, h.cfg, h.log, st, version)
		s.evict = func() { h.evict(boardID, s) }
		h.boards[boardID] = s
		h.mu.Unlock()

		go s.run()
		return s, nil
	}
}

// evict forgets s if it is still the resident sequencer of boardID.
func (h *Hub) evict(boardID string, s *Sequencer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.boards[boardID] == s {
		delete(h.boards, boardID)
	}
}

// DeleteBoard destroys a board on behalf of its owner. The board is marked
// gone before the cascade runs, so concurrent requests fail with
// ErrBoardGone instead of racing it. Lookups fail until the stored board
// is gone too, so it cannot be loaded back in the meantime.
func (h *Hub) DeleteBoard(ctx context.Context, boardID, userID string) error {
	s, err := h.Board(ctx, boardID)
	if err != nil {
		return err
	}

	err = s.View(ctx, func(st *engine.State) error {
		p, ok := st.Participant(userID)
		if !ok || !engine.Allowed(engine.Actor{UserID: userID, Role: p.Role}, engine.OpDeleteBoard, "", st.Board.IsLocked) {
			return fmt.Errorf("%w: only the owner may delete board %s", engine.ErrForbidden, boardID)
		}
		return nil
	})
	if err != nil {
		return err
	}

	h.mu.Lock()
	if _, ok := h.deleting[boardID]; ok {
		h.mu.Unlock()
		return fmt.Errorf("%w: board %s is being deleted", engine.ErrBoardGone, boardID)
	}
	h.deleting[boardID] = struct{}{}
	if h.boards[boardID] == s {
		delete(h.boards, boardID)
	}
	h.mu.Unlock()

	s.destroy()
	err = h.store.Delete(context.WithoutCancel(ctx), boardID)

	h.mu.Lock()
	delete(h.deleting, boardID)
	h.deletes++
	h.mu.Unlock()

	if err != nil {
		return fmt.Errorf("failed to delete board %s: %w", boardID, err)
	}

	h.log.Info("Board deleted", "board_id", boardID, "user_id", userID)
	return nil
}

// Close stops every sequencer and closes all channels.
func (h *Hub) Close() {
	h.mu.Lock()
	boards := h.boards
	h.boards = make(map[string]*Sequencer)
	h.mu.Unlock()

	for _, s := range boards {
		s.stop()
	}
}
