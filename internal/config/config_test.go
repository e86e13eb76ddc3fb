package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultValues(t *testing.T) {
	t.Setenv("GOOGLE_CREDENTIALS_FILE", filepath.Join(t.TempDir(), "missing.json"))
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("STORE_BACKEND", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreFile, cfg.StoreBackend)
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.Equal(t, "alerts.violations", cfg.AMQPQueue)
	assert.Equal(t, 24*time.Hour, cfg.AlertLedgerTTL)
	assert.False(t, cfg.HasOAuth())
}

func TestLoad_EnvironmentVariables(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("SYNC_INTERVAL", "90s")
	t.Setenv("SWEEP_INTERVAL", "not-a-duration")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")
	t.Setenv("CORS_ALLOW_ORIGINS", "https://a.example, ,https://b.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, 90*time.Second, cfg.SyncInterval)
	assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
	assert.True(t, cfg.HasOAuth())
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowOrigins)
}

func TestLoad_PostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("STORE_BACKEND", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_UnknownBackend(t *testing.T) {
	t.Setenv("STORE_BACKEND", "sqlite")

	_, err := Load()
	assert.ErrorContains(t, err, "sqlite")
}

func TestLoad_GoogleCredentialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"web":{"client_id":"cid","client_secret":"cs","redirect_uris":["https://fam.example/auth/google/callback"]}}`), 0o600))
	t.Setenv("GOOGLE_CREDENTIALS_FILE", path)
	t.Setenv("GOOGLE_CLIENT_ID", "")
	t.Setenv("GOOGLE_CLIENT_SECRET", "")
	t.Setenv("GOOGLE_REDIRECT_URL", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "cid", cfg.GoogleClientID)
	assert.Equal(t, "cs", cfg.GoogleClientSecret)
	assert.Equal(t, "https://fam.example/auth/google/callback", cfg.GoogleRedirectURL)
}
