// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package router defines HTTP routes for the retroboard API.

# Route Registration

NewRouter creates a configured http.ServeMux with all endpoints:

	mux := router.NewRouter(hub, cfg)

# Endpoints

Health:

	GET /health

Identity (public):

	POST /users - Issue a user id and token

Boards (require X-User-ID and X-User-Token):

	POST   /boards               - Create board
	GET    /boards/{id}          - Board snapshot
	DELETE /boards/{id}          - Delete board and everything on it
	POST   /boards/{id}/join     - Join or request to join
	POST   /boards/{id}/commands - Apply one command

Live channels (same identity, also accepted as user_id and token query
parameters):

	GET /boards/{id}/ws          - Board events and commands
	GET /boards/{id}/requests/ws - Join request resolution

Every route except /health and / is wrapped in middleware.WithLogging.
*/
package router
