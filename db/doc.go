// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package db handles database schema creation.

# Schema Creation

CreateSchema applies the embedded migrations for the given driver:

	if err := db.CreateSchema(conn, db.DriverSQLite); err != nil {
		log.Fatal(err)
	}

Safe to call multiple times. Migrations live under migrations/sqlite and
migrations/postgres and are applied with golang-migrate.

# Tables

  - boards: settings, timer window, shared note and the optimistic version
  - board_columns: columns with a dense col_index
  - notes: position_column, position_stack ('' for roots), position_rank
  - participants: one row per (board, user)
  - voting_sessions: sessions with their frozen results as JSON
  - votes: one row per vote, ordered by ord
  - join_requests: one row per (board, user)
  - bans: banned users per board

# Relationships

	boards 1──* board_columns
	boards 1──* notes
	boards 1──* participants
	boards 1──* voting_sessions
	boards 1──* votes
	boards 1──* join_requests
	boards 1──* bans

All foreign keys use ON DELETE CASCADE, so deleting a board row removes
everything it owns. The ord column keeps the in-memory order of each
collection across a reload.
*/
package db
