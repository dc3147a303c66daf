// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package store persists board states for the sequencer.

# Implementations

  - Memory: process-local map, used for DATABASE_TYPE=memory and in tests
  - SQL: sqlx over modernc.org/sqlite or lib/pq, schema from package db

# Optimistic Versioning

Every board row carries a version. Commit bumps it only when the caller
still holds the current value:

	UPDATE boards SET version = version + 1 WHERE id = ? AND version = ?

Zero affected rows means another writer committed first (ErrConflict) or the
board is gone (ErrBoardGone). The sequencer reloads on conflict and replays
the operation against the fresh state.

# Dirty Collections

Commit rewrites only the collections flagged in engine.Dirty. Each one is
replaced wholesale inside the transaction, keeping slice order in the ord
column.
*/
package store
