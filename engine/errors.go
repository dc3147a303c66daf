// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package engine

import (
	"errors"
	"fmt"
)

// Rejection kinds. Every error returned by an engine operation wraps exactly
// one of these, so callers classify with errors.Is.
var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrLimitExceeded    = errors.New("limit exceeded")
	ErrConflict         = errors.New("conflict")
	ErrBoardGone        = errors.New("board gone")
	ErrCorrupted        = errors.New("board state corrupted")
)

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrNotFound}, args...)...)
}

func forbidden(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrForbidden}, args...)...)
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidOperation}, args...)...)
}

func limitExceeded(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrLimitExceeded}, args...)...)
}

func corrupted(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrCorrupted}, args...)...)
}

// Kind returns the wire name of the rejection kind wrapped by err, or
// "internal" when err carries none of them.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidOperation):
		return "invalid_operation"
	case errors.Is(err, ErrLimitExceeded):
		return "limit_exceeded"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrBoardGone):
		return "board_gone"
	case errors.Is(err, ErrCorrupted):
		return "corrupted"
	}
	return "internal"
}
