// Command api is the VitalSync server: the HTTP API plus the sync and alert
// sweep loops.
//
// Usage:
//
//	vitalsync-api
//	API_PORT=8080 STORE_BACKEND=postgres vitalsync-api

// @title VitalSync API
// @version 1.0.0
// @description Family health monitoring: member authorization, latest vitals, historical series and alert passes.
// @host localhost:3000
// @BasePath /
// @schemes http https
// @contact.name VitalSync
// @license.name MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	_ "github.com/albapepper/vitalsync/docs" // swagger docs
	"github.com/albapepper/vitalsync/internal/app"
	"github.com/albapepper/vitalsync/internal/config"
)

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load configuration:", err)
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting VitalSync API",
			"addr", addr,
			"environment", cfg.Environment,
			"store", cfg.StoreBackend,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		a.Engine.Start(gctx, a.SchedulerConfig())
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		a.Close()
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
