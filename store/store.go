// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"fmt"

	"github.com/danielhkuo/retroboard/engine"
)

// Store persists board states. Versions start at 1 on Create and grow by
// one on every Commit.
type Store interface {
	// Create inserts a new board with all of its collections.
	Create(ctx context.Context, st *engine.State) error

	// Load reads a board and its current version. Unknown boards wrap
	// engine.ErrNotFound.
	Load(ctx context.Context, boardID string) (*engine.State, int64, error)

	// Commit writes the collections named by dirty, provided the stored
	// version still equals version. A stale version wraps engine.ErrConflict
	// and a missing board wraps engine.ErrBoardGone. It returns the new
	// version.
	Commit(ctx context.Context, st *engine.State, version int64, dirty engine.Dirty) (int64, error)

	// Delete removes a board and everything it owns.
	Delete(ctx context.Context, boardID string) error

	Close() error
}

func boardNotFound(boardID string) error {
	return fmt.Errorf("%w: board %s", engine.ErrNotFound, boardID)
}

func boardGone(boardID string) error {
	return fmt.Errorf("%w: board %s", engine.ErrBoardGone, boardID)
}

func versionConflict(boardID string, version int64) error {
	return fmt.Errorf("%w: board %s is no longer at version %d", engine.ErrConflict, boardID, version)
}
