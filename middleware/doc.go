// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package middleware provides HTTP middleware and helper functions.

# Request Logging

Wrap handlers with request logging:

	mux.HandleFunc("GET /health", middleware.WithLogging(handler))

Logs request start (method, path, remote) and completion (status, bytes,
duration_ms). Metrics are captured with httpsnoop, which keeps the
Hijacker interface intact for websocket upgrades.

# Identity

Every board route requires a user id and the HMAC token issued by
POST /users:

	mux.HandleFunc("POST /boards", middleware.RequireUser(salt, handler))

The id is read from X-User-ID and X-User-Token, or from the user_id and
token query parameters for websocket clients. Handlers fetch it with
middleware.UserID(r).

# Rejections

EngineError maps the engine's error kinds to HTTP status codes:

	ErrNotFound         → 404
	ErrForbidden        → 403
	ErrInvalidOperation → 400
	ErrLimitExceeded    → 409
	ErrConflict         → 409
	ErrBoardGone        → 410
	anything else       → 500

The body is {"error", "message", "kind"}; Rejection builds the same value
for websocket RESULT replies.

# Rate Limiting

RateLimiter keeps one golang.org/x/time/rate bucket per client IP:

	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)
	server := http.Server{Handler: limiter.Limit(middleware.CORS(mux))}

# JSON Helpers

	middleware.JSONResponse(w, http.StatusOK, data)
	middleware.ErrorResponse(w, http.StatusBadRequest, "message")

	var req models.CreateBoardRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

# Client IP Extraction

	ip := middleware.GetClientIP(r)

Checks X-Forwarded-For, then X-Real-IP, then RemoteAddr.
*/
package middleware
