// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package router

import (
	"net/http"

	"github.com/danielhkuo/retroboard/cliparse"
	"github.com/danielhkuo/retroboard/handlers"
	"github.com/danielhkuo/retroboard/middleware"
	"github.com/danielhkuo/retroboard/sequencer"
)

func NewRouter(hub *sequencer.Hub, cfg cliparse.Config) *http.ServeMux {
	mux := http.NewServeMux()

	// Initialize handlers
	userHandler := handlers.NewUserHandler(cfg)
	boardHandler := handlers.NewBoardHandler(hub, cfg)
	socketHandler := handlers.NewSocketHandler(hub, cfg)

	authed := func(h http.HandlerFunc) http.HandlerFunc {
		return middleware.WithLogging(middleware.RequireUser(cfg.UserTokenSalt, h))
	}

	// Health check
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Identity
	mux.HandleFunc("POST /users", middleware.WithLogging(userHandler.CreateUser))

	// Board lifecycle
	mux.HandleFunc("POST /boards", authed(boardHandler.CreateBoard))
	mux.HandleFunc("GET /boards/{id}", authed(boardHandler.GetBoard))
	mux.HandleFunc("DELETE /boards/{id}", authed(boardHandler.DeleteBoard))
	mux.HandleFunc("POST /boards/{id}/join", authed(boardHandler.JoinBoard))
	mux.HandleFunc("POST /boards/{id}/commands", authed(boardHandler.ApplyCommand))

	// Live channels
	mux.HandleFunc("GET /boards/{id}/ws", authed(socketHandler.BoardSocket))
	mux.HandleFunc("GET /boards/{id}/requests/ws", authed(socketHandler.RequestSocket))

	// Root endpoint
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("retroboard API v1"))
	})

	return mux
}
