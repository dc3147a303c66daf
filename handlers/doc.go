// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package handlers contains HTTP and websocket handlers for the retroboard API.

# Handler Types

Each handler is a struct with hub and config dependencies:

  - UserHandler: Anonymous identities
  - BoardHandler: Board lifecycle, join and REST commands
  - SocketHandler: Board and join-request websockets

Handlers are created via constructor functions:

	boardHandler := handlers.NewBoardHandler(hub, cfg)

All routes except POST /users run behind middleware.RequireUser, which
resolves X-User-ID and X-User-Token to the caller's id.

# Identity

	POST /users → CreateUser (returns user_id and token)

# Boards

	POST   /boards               → CreateBoard (caller becomes OWNER)
	GET    /boards/{id}          → GetBoard (snapshot, participants only)
	DELETE /boards/{id}          → DeleteBoard (owner only)
	POST   /boards/{id}/join     → JoinBoard (returns the admission state)
	POST   /boards/{id}/commands → ApplyCommand

Join answers with one of ready, passphrase_required, incorrect_passphrase,
awaiting_confirmation, too_many_join_requests, rejected or banned.

# Sockets

	GET /boards/{id}/ws?passphrase=... → BoardSocket
	GET /boards/{id}/requests/ws       → RequestSocket

The board socket first sends INIT, then every board event in sequence
order. Clients send commands as JSON:

	{"request_id": "r1", "type": "moveNote", "args": {"note": "...", "column": "...", "rank": 0}}

and receive a RESULT event for each one:

	{"type": "RESULT", "data": {"request_id": "r1", "ok": false, "error": {"kind": "forbidden", ...}}}

A rejected command changes nothing and produces no board events. The socket
closes when the user is banned, the board is deleted, or the client falls
too far behind; a reconnect starts again with INIT.

Users awaiting confirmation open the request socket and wait for
REQUEST_UPDATED, then connect to the board socket once accepted.

# Errors

Engine rejections map to status codes through middleware.EngineError:
404, 403, 400, 409 (limits and contention), 410 (deleted board), 500.
*/
package handlers
