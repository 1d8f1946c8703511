package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dukerupert/prepper/internal/config"
	"github.com/dukerupert/prepper/internal/database"
	"github.com/dukerupert/prepper/internal/email"
	"github.com/dukerupert/prepper/internal/logging"
	"github.com/dukerupert/prepper/internal/server"
	"github.com/dukerupert/prepper/internal/store"
)

const cleanupInterval = 15 * time.Minute

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)
	if cfg.Dev {
		logger.Warn("running in dev mode")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open database", "path", cfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	emailClient := email.NewClient(cfg.Postmark.ServerToken, cfg.Postmark.FromEmail)
	if !emailClient.Configured() {
		logger.Warn("postmark not configured, invitation links and reset codes will not be mailed")
	}

	srv := server.New(db, cfg, emailClient, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go runCleanup(ctx, store.New(db), srv, logger.With("component", "cleanup"))

	go func() {
		logger.Info("prepper listening", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
		os.Exit(1)
	}
}

// runCleanup drops expired password reset codes and stale rate limit
// windows until ctx is done.
func runCleanup(ctx context.Context, s *store.Stores, srv *server.Server, logger *slog.Logger) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Resets.DeleteExpired(ctx, time.Now().UTC())
			if err != nil {
				logger.Error("delete expired reset codes", "error", err)
			} else if n > 0 {
				logger.Info("deleted expired reset codes", "count", n)
			}
			if n := srv.RateLimiter().Cleanup(); n > 0 {
				logger.Debug("dropped rate limit windows", "count", n)
			}
		}
	}
}
