package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"afterhours/internal/api"
	"afterhours/internal/archive"
	"afterhours/internal/auth"
	"afterhours/internal/config"
	"afterhours/internal/game"
	"afterhours/internal/loop"
	"afterhours/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.LoadServerFromEnv()
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var sink loop.EventSink
	if cfg.DatabaseURL != "" {
		arc, err := archive.Open(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("archive unavailable, continuing without it", "err", err)
		} else {
			defer arc.Close()
			go arc.Run(ctx)
			sink = arc
		}
	}

	ledger := game.NewLedger(logger)
	registry := session.NewRegistry(cfg.SessionQueue, logger)
	gameLoop := loop.New(loop.Config{
		TickInterval: cfg.TickEvery,
		DayTicks:     cfg.DayTicks,
		NightTicks:   cfg.NightTicks,
		Seed:         cfg.Seed,
		InboxSize:    cfg.InboxSize,
	}, ledger, registry, sink, logger)

	go func() {
		if err := gameLoop.Run(ctx); err != nil && err != context.Canceled {
			logger.Error("game loop exited", "err", err)
		}
	}()

	server := api.New(logger, auth.NewService(logger), gameLoop, registry)
	httpServer := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	logger.Info("afterhours listening", "addr", cfg.Addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server failed", "err", err)
		os.Exit(1)
	}
}
