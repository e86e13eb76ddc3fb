// Package app assembles the service graph from configuration. Both binaries
// build their components here so the API server and the CLI behave the same.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/albapepper/vitalsync/internal/alerts"
	"github.com/albapepper/vitalsync/internal/api"
	"github.com/albapepper/vitalsync/internal/api/handler"
	"github.com/albapepper/vitalsync/internal/cache"
	"github.com/albapepper/vitalsync/internal/config"
	"github.com/albapepper/vitalsync/internal/db"
	"github.com/albapepper/vitalsync/internal/metrics"
	"github.com/albapepper/vitalsync/internal/monitor"
	"github.com/albapepper/vitalsync/internal/notifications"
	"github.com/albapepper/vitalsync/internal/provider/googlefit"
	"github.com/albapepper/vitalsync/internal/scheduler"
	"github.com/albapepper/vitalsync/internal/store"
	"github.com/albapepper/vitalsync/internal/token"
)

// Backend is a store that holds both profiles and credentials.
type Backend interface {
	store.ProfileStore
	store.CredentialStore
}

// App is the wired service graph.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Store    Backend
	DB       *db.Pool // nil unless STORE_BACKEND=postgres
	Tokens   *token.Manager
	Fit      *googlefit.Client
	Engine   *scheduler.Engine
	Monitor  *monitor.Service
	Cache    *cache.Cache
	Registry *prometheus.Registry

	closers []func() error
}

// NewLogger builds the process logger from LOG_LEVEL and LOG_FORMAT.
func NewLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// New wires every component. The caller must Close the returned App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: logger}
	if err := a.build(ctx); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) build(ctx context.Context) error {
	cfg, logger := a.Config, a.Logger

	a.Registry = prometheus.NewRegistry()
	a.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := metrics.Register(a.Registry); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	backend, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	a.Store = backend

	if cfg.RosterFile != "" {
		roster, err := store.LoadRoster(cfg.RosterFile)
		if err != nil {
			return err
		}
		added, err := store.SeedRoster(ctx, backend, roster)
		if err != nil {
			return err
		}
		logger.Info("Roster loaded", "file", cfg.RosterFile, "members", len(roster), "added", added)
	}

	var idp token.IdentityProvider
	if cfg.HasOAuth() {
		idp = token.NewGoogle(token.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
			Timeout:      cfg.FitTimeout,
		})
	} else {
		logger.Warn("OAuth disabled (no GOOGLE_CLIENT_ID / GOOGLE_CLIENT_SECRET); members cannot be authorized")
	}
	a.Tokens = token.NewManager(backend, idp, logger, token.WithProfiles(backend))

	a.Fit = googlefit.NewClient(cfg.FitBaseURL, cfg.FitRequestsPerMinute, cfg.FitTimeout, a.Tokens, logger)

	ledger, err := a.openLedger(ctx)
	if err != nil {
		return err
	}
	dispatcher := notifications.NewDispatcher(a.transport(), ledger, cfg.AlertRecipient, logger)

	a.Engine = scheduler.New(backend, a.Fit, dispatcher, logger, scheduler.WithAlertMaxAge(cfg.AlertLedgerTTL))
	a.Monitor = monitor.New(backend, a.Tokens, a.Fit, a.Engine, logger)
	a.Cache = cache.New(cfg.CacheEnabled)
	return nil
}

func (a *App) openStore(ctx context.Context) (Backend, error) {
	cfg := a.Config
	sealer, err := store.NewSealer(cfg.TokenSealKey)
	if err != nil {
		return nil, err
	}
	if sealer == nil && cfg.StoreBackend != config.StoreMemory {
		a.Logger.Warn("TOKEN_SEAL_KEY not set; credentials are stored unencrypted")
	}

	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := db.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		a.DB = pool
		a.closers = append(a.closers, func() error { pool.Close(); return nil })
		a.Logger.Info("Database connected", "min_conns", cfg.DBPoolMinConns, "max_conns", cfg.DBPoolMaxConns)
		return store.NewPostgres(pool, sealer), nil
	case config.StoreMemory:
		return store.NewMemory(), nil
	default:
		fs, err := store.NewFile(cfg.DataDir, sealer)
		if err != nil {
			return nil, err
		}
		a.Logger.Info("File store opened", "dir", cfg.DataDir)
		return fs, nil
	}
}

func (a *App) openLedger(ctx context.Context) (alerts.Ledger, error) {
	cfg := a.Config
	if cfg.RedisURL == "" {
		return alerts.NewMemoryLedger(cfg.AlertLedgerTTL), nil
	}
	l, err := alerts.NewRedisLedger(ctx, cfg.RedisURL, cfg.AlertLedgerTTL)
	if err != nil {
		return nil, fmt.Errorf("open alert ledger: %w", err)
	}
	a.closers = append(a.closers, l.Close)
	a.Logger.Info("Alert ledger on redis", "ttl", cfg.AlertLedgerTTL)
	return l, nil
}

func (a *App) transport() notifications.Transport {
	cfg := a.Config
	var multi notifications.Multi
	if t := notifications.NewSMTPTransport(cfg.SMTPHost, cfg.SMTPPort, cfg.AlertEmailFrom, cfg.SMTPUser, cfg.SMTPPassword, cfg.SMTPTLSMode, a.Logger); t != nil {
		multi = append(multi, t)
	}
	if t := notifications.NewAMQPTransport(cfg.AMQPURL, cfg.AMQPQueue, a.Logger); t != nil {
		multi = append(multi, t)
	}
	switch len(multi) {
	case 0:
		a.Logger.Info("No alert transport configured, alerts are logged only")
		return notifications.NewLogTransport(a.Logger)
	case 1:
		return multi[0]
	default:
		return multi
	}
}

// SchedulerConfig returns the loop cadence from configuration.
func (a *App) SchedulerConfig() scheduler.Config {
	return scheduler.Config{
		SyncInterval:  a.Config.SyncInterval,
		SweepInterval: a.Config.SweepInterval,
	}
}

// Router builds the HTTP handler for the API server.
func (a *App) Router() http.Handler {
	var hc handler.HealthChecker
	if a.DB != nil {
		hc = a.DB
	}
	return api.NewRouter(a.Monitor, a.Cache, hc, a.Registry, a.Config)
}

// Close releases the database pool and ledger connection.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
