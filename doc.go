// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package main provides the entry point for the retroboard API server.

Retroboard hosts collaborative retrospective boards. Participants write notes
into columns, reorder and stack them, vote on them in timed sessions, and see
every change from everyone else in real time over a WebSocket.

# Starting the Server

The server reads environment variables, an optional .env file, an optional
TOML file and CLI flags:

	USER_TOKEN_SALT=... DATABASE_URL=retro.db go run .

Or with flags:

	go run . -p 3318 -t postgres -d "postgres://..." -user-salt secret

An in-memory store needs no database:

	USER_TOKEN_SALT=dev go run . -t memory

# Configuration

Required settings:

  - USER_TOKEN_SALT (-user-salt): Secret for user token HMAC
  - DATABASE_URL (-d): SQLite path or PostgreSQL connection string, unless
    DATABASE_TYPE is memory

Optional settings:

  - PORT (-p): Server port (default: 3318)
  - DATABASE_TYPE (-t): sqlite, postgres or memory (default: sqlite)
  - JOIN_REQUEST_CEILING (-join-ceiling): Pending join requests per board
  - RATE_LIMIT (-rate-limit): Requests per second per client IP
  - RETROBOARD_CONFIG (-config): TOML file with limit settings

# Architecture

Every board is owned by one sequencer goroutine, which applies commands one
at a time and broadcasts the resulting events:

  - engine: Board rules, ordering, voting and access control as pure functions
  - sequencer: Per-board actor, subscriptions and redaction
  - store: Memory and SQL persistence with optimistic versioning
  - reconciler: Client-side replica that folds events into board state
  - client: Go client for the HTTP and WebSocket API
  - handlers, router, middleware: HTTP and WebSocket surface
  - models: Wire types for commands, events and requests
  - auth: User tokens and passphrase hashing
  - db: Schema migrations
  - cliparse: Configuration parsing

The retroctl command under cmd/ is a terminal client built on package client.

See package documentation for each component.
*/
package main
