// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/felixge/httpsnoop"

	"github.com/danielhkuo/retroboard/auth"
	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/models"
)

// Identity headers. Browsers cannot set headers on websocket upgrades, so
// the same values are also read from the user_id and token query params.
const (
	HeaderUserID    = "X-User-ID"
	HeaderUserToken = "X-User-Token"
)

type userKey struct{}

// WithLogging wraps a handler with request logging
func WithLogging(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("request started",
			"method", r.Method,
			"path", r.URL.Path,
			"remote", r.RemoteAddr,
		)

		m := httpsnoop.CaptureMetrics(next, w, r)

		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", m.Code,
			"bytes", m.Written,
			"duration_ms", m.Duration.Milliseconds(),
		)
	}
}

// RequireUser rejects requests without a valid user id and token. The
// resolved id is available to the handler through UserID.
func RequireUser(salt string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := r.Header.Get(HeaderUserID)
		token := r.Header.Get(HeaderUserToken)
		if userID == "" && token == "" {
			userID = r.URL.Query().Get("user_id")
			token = r.URL.Query().Get("token")
		}

		if err := auth.ValidateUserToken(userID, token, salt); err != nil {
			if errors.Is(err, auth.ErrMissingIdentity) {
				ErrorResponse(w, http.StatusUnauthorized, "Missing user identity")
				return
			}
			ErrorResponse(w, http.StatusUnauthorized, "Invalid user token")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, userID)))
	}
}

// UserID returns the id resolved by RequireUser, or "".
func UserID(r *http.Request) string {
	id, _ := r.Context().Value(userKey{}).(string)
	return id
}

// JSONResponse writes a JSON response
func JSONResponse(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	err := json.NewEncoder(w).Encode(data)
	if err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

// ErrorResponse writes a JSON error response
func ErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	JSONResponse(w, statusCode, models.ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
	})
}

// StatusCode maps an engine rejection to its HTTP status.
func StatusCode(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidOperation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrLimitExceeded), errors.Is(err, engine.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, engine.ErrBoardGone):
		return http.StatusGone
	}
	return http.StatusInternalServerError
}

// Rejection builds the structured error body for err. Internal errors keep
// their details out of the message.
func Rejection(err error) models.ErrorResponse {
	status := StatusCode(err)
	resp := models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: err.Error(),
		Kind:    engine.Kind(err),
	}
	if status == http.StatusInternalServerError {
		resp.Message = "Internal error"
	}
	return resp
}

// EngineError writes err as a structured rejection
func EngineError(w http.ResponseWriter, err error) {
	status := StatusCode(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
	}
	JSONResponse(w, status, Rejection(err))
}

// ParseJSONBody parses the request body into the given struct
func ParseJSONBody(r *http.Request, v any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return nil
}

// CORS middleware allows cross-origin requests from the frontend
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+HeaderUserID+", "+HeaderUserToken)
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		// Handle preflight requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// GetClientIP extracts the client IP address
// Checks X-Forwarded-For, X-Real-IP, then falls back to RemoteAddr
func GetClientIP(r *http.Request) string {
	// Check X-Forwarded-For (load balancers)
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// Take first IP in chain
		for i := 0; i < len(xff); i++ {
			if xff[i] == ',' || xff[i] == ' ' {
				return xff[:i]
			}
		}
		return xff
	}

	// Check X-Real-IP (nginx)
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	// Strip port if present
	addr := r.RemoteAddr
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			return addr[:i]
		}
	}
	return addr
}
