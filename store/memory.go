// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/danielhkuo/retroboard/engine"
)

type memoryRecord struct {
	state   *engine.State
	version int64
}

// Memory keeps boards in process memory. Every read and write copies the
// state, so callers never share slices with the store.
type Memory struct {
	mu     sync.RWMutex
	boards map[string]memoryRecord
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{boards: make(map[string]memoryRecord)}
}

func (m *Memory) Create(ctx context.Context, st *engine.State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.boards[st.Board.ID]; exists {
		return fmt.Errorf("board %s already exists", st.Board.ID)
	}
	m.boards[st.Board.ID] = memoryRecord{state: st.Clone(), version: 1}
	return nil
}

func (m *Memory) Load(ctx context.Context, boardID string) (*engine.State, int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.boards[boardID]
	if !ok {
		return nil, 0, boardNotFound(boardID)
	}
	return rec.state.Clone(), rec.version, nil
}

func (m *Memory) Commit(ctx context.Context, st *engine.State, version int64, dirty engine.Dirty) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.boards[st.Board.ID]
	if !ok {
		return 0, boardGone(st.Board.ID)
	}
	if rec.version != version {
		return 0, versionConflict(st.Board.ID, version)
	}

	next := rec.state.Clone()
	src := st.Clone()
	if dirty&engine.DirtyBoard != 0 {
		next.Board = src.Board
	}
	if dirty&engine.DirtyColumns != 0 {
		next.Columns = src.Columns
	}
	if dirty&engine.DirtyNotes != 0 {
		next.Notes = src.Notes
	}
	if dirty&engine.DirtyParticipants != 0 {
		next.Participants = src.Participants
	}
	if dirty&engine.DirtyVotes != 0 {
		next.Votes = src.Votes
	}
	if dirty&engine.DirtyVotings != 0 {
		next.Votings = src.Votings
	}
	if dirty&engine.DirtyRequests != 0 {
		next.Requests = src.Requests
	}
	if dirty&engine.DirtyBans != 0 {
		next.Bans = src.Bans
	}

	rec = memoryRecord{state: next, version: version + 1}
	m.boards[st.Board.ID] = rec
	return rec.version, nil
}

func (m *Memory) Delete(ctx context.Context, boardID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.boards[boardID]; !ok {
		return boardNotFound(boardID)
	}
	delete(m.boards, boardID)
	return nil
}

func (m *Memory) Close() error {
	return nil
}
