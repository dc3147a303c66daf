// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"log/slog"
	"net/http"

	"github.com/danielhkuo/retroboard/auth"
	"github.com/danielhkuo/retroboard/cliparse"
	"github.com/danielhkuo/retroboard/middleware"
	"github.com/danielhkuo/retroboard/models"
)

type UserHandler struct {
	cfg cliparse.Config
}

func NewUserHandler(cfg cliparse.Config) *UserHandler {
	return &UserHandler{cfg: cfg}
}

// CreateUser handles POST /users
func (h *UserHandler) CreateUser(w http.ResponseWriter, r *http.Request) {
	userID, token := auth.NewUser(h.cfg.UserTokenSalt)

	slog.Info("user created", "user_id", userID)

	middleware.JSONResponse(w, http.StatusCreated, models.CreateUserResponse{
		UserID: userID,
		Token:  token,
	})
}
