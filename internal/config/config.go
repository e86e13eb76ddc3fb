// Package config provides centralized configuration loaded from environment
// variables. Shared by both cmd/api and cmd/fitsync.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// --------------------------------------------------------------------------
// Store backends
// --------------------------------------------------------------------------

const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// --------------------------------------------------------------------------
// Config is populated from environment variables.
// --------------------------------------------------------------------------

type Config struct {
	// API server
	APIHost     string
	APIPort     int
	Environment string // development, staging, production
	LogLevel    string
	LogFormat   string // text | json

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Profile + credential storage
	StoreBackend   string
	DataDir        string
	DatabaseURL    string
	DBPoolMinConns int
	DBPoolMaxConns int
	DBPoolMaxLife  time.Duration
	RosterFile     string
	TokenSealKey   string // base64, 32 bytes; empty = tokens stored unsealed

	// Identity provider (Google OAuth2)
	GoogleClientID       string
	GoogleClientSecret   string
	GoogleRedirectURL    string
	GoogleCredentialFile string

	// Fitness API
	FitBaseURL           string
	FitRequestsPerMinute int
	FitTimeout           time.Duration

	// Alert transports
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SMTPTLSMode    string
	AlertEmailFrom string
	AlertRecipient string
	AMQPURL        string
	AMQPQueue      string
	RedisURL       string
	AlertLedgerTTL time.Duration // also the oldest reading that may still alert

	// Scheduling
	SyncInterval  time.Duration
	SweepInterval time.Duration

	// Cache
	CacheEnabled bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		APIHost:     envOr("API_HOST", "0.0.0.0"),
		APIPort:     envInt("API_PORT", envInt("PORT", 3000)),
		Environment: envOr("ENVIRONMENT", "development"),
		LogLevel:    envOr("LOG_LEVEL", "info"),
		LogFormat:   envOr("LOG_FORMAT", "text"),

		CORSAllowOrigins: envList("CORS_ALLOW_ORIGINS", []string{
			"http://localhost:3000",
			"http://localhost:5173",
		}),

		RateLimitEnabled:  envBool("RATE_LIMIT_ENABLED", true),
		RateLimitRequests: envInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitWindow:   time.Duration(envInt("RATE_LIMIT_WINDOW", 60)) * time.Second,

		StoreBackend:   strings.ToLower(envOr("STORE_BACKEND", StoreFile)),
		DataDir:        envOr("DATA_DIR", "data"),
		DatabaseURL:    envOr("DATABASE_URL", ""),
		DBPoolMinConns: envInt("DB_POOL_MIN_CONNS", 1),
		DBPoolMaxConns: envInt("DB_POOL_MAX_CONNS", 4),
		DBPoolMaxLife:  time.Duration(envInt("DB_POOL_MAX_LIFE_MINUTES", 30)) * time.Minute,
		RosterFile:     envOr("ROSTER_FILE", ""),
		TokenSealKey:   envOr("TOKEN_SEAL_KEY", ""),

		GoogleClientID:       envOr("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret:   envOr("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:    envOr("GOOGLE_REDIRECT_URL", "http://localhost:3000/auth/google/callback"),
		GoogleCredentialFile: envOr("GOOGLE_CREDENTIALS_FILE", "config/google-oauth2-credentials.json"),

		FitBaseURL:           envOr("FIT_BASE_URL", "https://www.googleapis.com/fitness/v1"),
		FitRequestsPerMinute: envInt("FIT_REQUESTS_PER_MINUTE", 120),
		FitTimeout:           envDuration("FIT_TIMEOUT", 30*time.Second),

		SMTPHost:       envOr("SMTP_HOST", ""),
		SMTPPort:       envInt("SMTP_PORT", 587),
		SMTPUser:       envOr("SMTP_USER", envOr("ALERT_EMAIL", "")),
		SMTPPassword:   envOr("SMTP_PASSWORD", envOr("ALERT_EMAIL_PASSWORD", "")),
		SMTPTLSMode:    envOr("SMTP_TLS_MODE", "auto"),
		AlertEmailFrom: envOr("ALERT_EMAIL_FROM", envOr("ALERT_EMAIL", "")),
		AlertRecipient: envOr("ALERT_RECIPIENT", ""),
		AMQPURL:        envOr("AMQP_URL", ""),
		AMQPQueue:      envOr("AMQP_QUEUE", "alerts.violations"),
		RedisURL:       envOr("REDIS_URL", ""),
		AlertLedgerTTL: envDuration("ALERT_LEDGER_TTL", 24*time.Hour),

		SyncInterval:  envDuration("SYNC_INTERVAL", 5*time.Minute),
		SweepInterval: envDuration("SWEEP_INTERVAL", 5*time.Minute),

		CacheEnabled: envBool("CACHE_ENABLED", true),
	}

	switch cfg.StoreBackend {
	case StoreFile, StoreMemory:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL must be set when STORE_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}

	if cfg.GoogleClientID == "" || cfg.GoogleClientSecret == "" {
		if err := cfg.loadGoogleCredentials(); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("load google credentials: %w", err)
		}
	}

	return cfg, nil
}

// IsProduction returns true if running in production environment.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// HasOAuth reports whether identity provider credentials are available.
func (c *Config) HasOAuth() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// googleCredentialFile is the "web" client JSON downloaded from the Google
// Cloud console.
type googleCredentialFile struct {
	Web struct {
		ClientID     string   `json:"client_id"`
		ClientSecret string   `json:"client_secret"`
		RedirectURIs []string `json:"redirect_uris"`
	} `json:"web"`
}

func (c *Config) loadGoogleCredentials() error {
	if c.GoogleCredentialFile == "" {
		return nil
	}
	raw, err := os.ReadFile(c.GoogleCredentialFile)
	if err != nil {
		return err
	}
	var f googleCredentialFile
	if err := json.Unmarshal(raw, &f); err != nil {
		return fmt.Errorf("decode %s: %w", c.GoogleCredentialFile, err)
	}
	c.GoogleClientID = f.Web.ClientID
	c.GoogleClientSecret = f.Web.ClientSecret
	if len(f.Web.RedirectURIs) > 0 && os.Getenv("GOOGLE_REDIRECT_URL") == "" {
		c.GoogleRedirectURL = f.Web.RedirectURIs[0]
	}
	return nil
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
