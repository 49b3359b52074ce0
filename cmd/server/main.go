package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"lexicon/internal/engine"
	"lexicon/internal/platform/config"
	"lexicon/internal/platform/httpserver"
	"lexicon/internal/platform/logger"
	"lexicon/internal/platform/metrics"
)

var version = "dev"

// main opens the engine against the configured store and change feed, then serves
// health and metrics until interrupted. The engine itself is used in-process.
func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Log)
	if err := run(cfg, log); err != nil {
		log.Error("lexicon stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.New(version)
	e, err := engine.Open(ctx, cfg, log, reg)
	if err != nil {
		return err
	}
	defer func() {
		if err := e.Close(); err != nil {
			log.Warn("closing engine", "error", err)
		}
	}()

	srv := httpserver.New(cfg.Server.OpsAddr, httpserver.NewOpsRouter(log, reg.Handler(), e.Checks()))
	errCh := make(chan error, 1)
	go func() {
		log.Info("starting lexicon", "addr", cfg.Server.OpsAddr, "store", cfg.Store.Backend, "change_feed", cfg.ChangeFeed.Kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("lexicon stopped cleanly")
	return nil
}
