// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/danielhkuo/retroboard/cliparse"
	"github.com/danielhkuo/retroboard/middleware"
	"github.com/danielhkuo/retroboard/models"
	"github.com/danielhkuo/retroboard/sequencer"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10

	maxCommandSize = 64 << 10
)

type SocketHandler struct {
	hub      *sequencer.Hub
	cfg      cliparse.Config
	upgrader websocket.Upgrader
}

func NewSocketHandler(hub *sequencer.Hub, cfg cliparse.Config) *SocketHandler {
	return &SocketHandler{
		hub: hub,
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Access is decided by the user token, not the page origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// BoardSocket handles GET /boards/{id}/ws. The user is admitted like
// POST /boards/{id}/join (passphrase in the query string). Users who are
// not admitted get the JoinBoardResponse with 403 instead of an upgrade.
func (h *SocketHandler) BoardSocket(w http.ResponseWriter, r *http.Request) {
	seq, err := h.hub.Board(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, err)
		return
	}

	userID := middleware.UserID(r)
	out, sub, err := seq.Connect(r.Context(), userID, r.URL.Query().Get("passphrase"))
	if err != nil {
		middleware.EngineError(w, err)
		return
	}
	if sub == nil {
		middleware.JSONResponse(w, http.StatusForbidden, models.JoinBoardResponse{
			State:   out.State,
			Request: out.Request,
		})
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade", "board_id", seq.ID(), "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	slog.Info("socket connected", "board_id", seq.ID(), "user_id", userID)

	results := make(chan models.Event, 16)
	done := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(done)
		if err := writeEvents(conn, sub.Events(), results); err != nil {
			slog.Warn("socket write failed", "board_id", seq.ID(), "user_id", userID, "error", err)
		}
	}()

	readCommands(r.Context(), conn, seq, userID, results, done)
	sub.Close()
	wg.Wait()

	slog.Info("socket disconnected", "board_id", seq.ID(), "user_id", userID)
}

// RequestSocket handles GET /boards/{id}/requests/ws for users waiting on a
// join request. It carries REQUEST_UPDATED and BOARD_DELETED only.
func (h *SocketHandler) RequestSocket(w http.ResponseWriter, r *http.Request) {
	seq, err := h.hub.Board(r.Context(), r.PathValue("id"))
	if err != nil {
		middleware.EngineError(w, err)
		return
	}

	userID := middleware.UserID(r)
	sub, err := seq.WatchRequest(r.Context(), userID)
	if err != nil {
		middleware.EngineError(w, err)
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("failed to upgrade", "board_id", seq.ID(), "user_id", userID, "error", err)
		return
	}
	defer conn.Close()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := writeEvents(conn, sub.Events(), nil); err != nil {
			slog.Warn("socket write failed", "board_id", seq.ID(), "user_id", userID, "error", err)
		}
	}()

	// Nothing is accepted from a waiting client; reading only notices the close.
	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	sub.Close()
	wg.Wait()
}

// writeEvents is the only writer on conn. It returns when events closes,
// after sending a close frame, or on the first write error.
func writeEvents(conn *websocket.Conn, events <-chan models.Event, results <-chan models.Event) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer conn.Close()

	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return nil
			}
			if err := conn.WriteJSON(ev); err != nil {
				return fmt.Errorf("failed to write %s: %w", ev.Type, err)
			}
		case ev := <-results:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				return fmt.Errorf("failed to write result: %w", err)
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("failed to ping: %w", err)
			}
		}
	}
}

// readCommands applies commands from the client until the socket closes.
// Every command is answered with a RESULT event carrying its request id.
func readCommands(ctx context.Context, conn *websocket.Conn, seq *sequencer.Sequencer, userID string, results chan<- models.Event, done <-chan struct{}) {
	conn.SetReadLimit(maxCommandSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("socket read failed", "board_id", seq.ID(), "user_id", userID, "error", err)
			}
			return
		}

		var cmd models.Command
		result := models.CommandResult{OK: true}
		if err := json.Unmarshal(raw, &cmd); err != nil {
			result.OK = false
			result.Error = &models.ErrorResponse{
				Error:   http.StatusText(http.StatusBadRequest),
				Message: "Invalid JSON",
				Kind:    "invalid_operation",
			}
		} else {
			result.RequestID = cmd.RequestID
			if _, err := seq.Apply(ctx, userID, cmd); err != nil {
				rej := middleware.Rejection(err)
				result.OK = false
				result.Error = &rej
			}
		}

		select {
		case results <- models.Event{Type: models.EventResult, Data: result}:
		case <-done:
			return
		}
	}
}
