// Command serve exposes the processed risk export over HTTP: the risk API
// for map frontends plus health, readiness, and metrics endpoints. It only
// reads the processed file; runs of cmd/etl replace it underneath.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/federalrisk/county-risk-etl/internal/adapter/http"
	"github.com/federalrisk/county-risk-etl/internal/config"
	"github.com/federalrisk/county-risk-etl/internal/observability"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	observability.NewMetrics()

	source := httpadapter.NewFileSource(cfg.ProcessedFile)
	srv := httpadapter.NewServer(cfg.HTTPAddr, source, source, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	logger.Info("shutdown complete")
}
