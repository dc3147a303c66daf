// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/danielhkuo/retroboard/cliparse"
	"github.com/danielhkuo/retroboard/engine"
	"github.com/danielhkuo/retroboard/middleware"
	"github.com/danielhkuo/retroboard/router"
	"github.com/danielhkuo/retroboard/sequencer"
	"github.com/danielhkuo/retroboard/store"
)

func main() {
	var err error

	// Parse configuration
	cfg, err := cliparse.ParseFlags(os.Args[1:])
	if err != nil {
		slog.Error("Error parsing flags", "error", err)
		os.Exit(1)
	}

	// Open board storage
	boards, err := openStore(cfg)
	if err != nil {
		slog.Error("store setup failed", "database_type", cfg.DatabaseType, "error", err)
		os.Exit(1)
	}
	defer boards.Close()
	slog.Info("Board store ready", "database_type", cfg.DatabaseType)

	eng := engine.New()
	eng.JoinRequestCeiling = cfg.JoinRequestCeiling
	eng.MaxVoteLimit = cfg.MaxVoteLimit

	hubCfg := sequencer.DefaultConfig()
	hubCfg.SubscriberBuffer = cfg.SubscriberBuffer
	hub := sequencer.NewHub(eng, boards, hubCfg, slog.Default())
	defer hub.Close()

	// Create router
	mux := router.NewRouter(hub, cfg)
	limiter := middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst)

	// Create server
	server := http.Server{
		Handler: limiter.Limit(middleware.CORS(mux)),
		Addr:    ":" + strconv.Itoa(cfg.Port),
	}

	// signal.Notify requires the channel to be buffered
	ctrlc := make(chan os.Signal, 1)
	signal.Notify(ctrlc, os.Interrupt, syscall.SIGTERM)
	go func() {
		// Wait for Ctrl-C signal
		<-ctrlc
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		// Live sockets are hijacked and not tracked by Shutdown; closing the
		// hub ends their event streams.
		hub.Close()
		server.Shutdown(ctx)
	}()

	// Start server
	slog.Info("Listening", "port", cfg.Port)
	err = server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		slog.Error("Server closed", "error", err)
	} else {
		slog.Info("Server closed", "error", err)
	}
}

func openStore(cfg cliparse.Config) (store.Store, error) {
	if cfg.DatabaseType == cliparse.DatabaseMemory {
		return store.NewMemory(), nil
	}
	return store.OpenSQL(cfg.DatabaseType, cfg.DatabaseURL)
}
