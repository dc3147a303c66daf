// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/danielhkuo/retroboard/cliparse"
	"github.com/danielhkuo/retroboard/middleware"
	"github.com/danielhkuo/retroboard/models"
	"github.com/danielhkuo/retroboard/sequencer"
)

type BoardHandler struct {
	hub *sequencer.Hub
	cfg cliparse.Config
}

func NewBoardHandler(hub *sequencer.Hub, cfg cliparse.Config) *BoardHandler {
	return &BoardHandler{hub: hub, cfg: cfg}
}

// CreateBoard handles POST /boards
func (h *BoardHandler) CreateBoard(w http.ResponseWriter, r *http.Request) {
	var req models.CreateBoardRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	board, err := h.hub.CreateBoard(r.Context(), middleware.UserID(r), req)
	if err != nil {
		middleware.EngineError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusCreated, models.CreateBoardResponse{BoardID: board.ID})
}

// GetBoard handles GET /boards/{id}
func (h *BoardHandler) GetBoard(w http.ResponseWriter, r *http.Request) {
	seq, ok := h.board(w, r)
	if !ok {
		return
	}

	snap, err := seq.Snapshot(r.Context(), middleware.UserID(r))
	if err != nil {
		middleware.EngineError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, snap)
}

// DeleteBoard handles DELETE /boards/{id}
func (h *BoardHandler) DeleteBoard(w http.ResponseWriter, r *http.Request) {
	boardID := r.PathValue("id")
	if boardID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "board_id is required")
		return
	}

	if err := h.hub.DeleteBoard(r.Context(), boardID, middleware.UserID(r)); err != nil {
		middleware.EngineError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// JoinBoard handles POST /boards/{id}/join. The body is optional and only
// carries the passphrase.
func (h *BoardHandler) JoinBoard(w http.ResponseWriter, r *http.Request) {
	seq, ok := h.board(w, r)
	if !ok {
		return
	}

	var req models.JoinBoardRequest
	if err := middleware.ParseJSONBody(r, &req); err != nil && !errors.Is(err, io.EOF) {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	userID := middleware.UserID(r)
	out, err := seq.Join(r.Context(), userID, req.Passphrase)
	if err != nil {
		middleware.EngineError(w, err)
		return
	}

	slog.Info("join attempt", "board_id", seq.ID(), "user_id", userID, "state", out.State)

	middleware.JSONResponse(w, http.StatusOK, models.JoinBoardResponse{
		State:       out.State,
		Participant: out.Participant,
		Request:     out.Request,
	})
}

// ApplyCommand handles POST /boards/{id}/commands. It has the same
// semantics as a command sent over the board socket.
func (h *BoardHandler) ApplyCommand(w http.ResponseWriter, r *http.Request) {
	seq, ok := h.board(w, r)
	if !ok {
		return
	}

	var cmd models.Command
	if err := middleware.ParseJSONBody(r, &cmd); err != nil {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	if _, err := seq.Apply(r.Context(), middleware.UserID(r), cmd); err != nil {
		middleware.EngineError(w, err)
		return
	}

	middleware.JSONResponse(w, http.StatusOK, models.CommandResult{RequestID: cmd.RequestID, OK: true})
}

// board resolves the {id} path value to a loaded board, writing the error
// response itself when that fails.
func (h *BoardHandler) board(w http.ResponseWriter, r *http.Request) (*sequencer.Sequencer, bool) {
	boardID := r.PathValue("id")
	if boardID == "" {
		middleware.ErrorResponse(w, http.StatusBadRequest, "board_id is required")
		return nil, false
	}

	seq, err := h.hub.Board(r.Context(), boardID)
	if err != nil {
		middleware.EngineError(w, err)
		return nil, false
	}
	return seq, true
}
