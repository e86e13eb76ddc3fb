package app

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/vitalsync/internal/config"
	"github.com/albapepper/vitalsync/internal/provider"
	"github.com/albapepper/vitalsync/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	roster := filepath.Join(dir, "roster.yaml")
	require.NoError(t, os.WriteFile(roster, []byte("members:\n  - id: mom\n    name: Mom\n  - id: dad\n"), 0o600))

	return &config.Config{
		LogLevel:             "error",
		StoreBackend:         config.StoreFile,
		DataDir:              filepath.Join(dir, "data"),
		RosterFile:           roster,
		FitBaseURL:           "http://127.0.0.1:1",
		FitRequestsPerMinute: 600,
		FitTimeout:           time.Second,
		AlertLedgerTTL:       time.Hour,
		SyncInterval:         time.Minute,
		SweepInterval:        2 * time.Minute,
		CacheEnabled:         true,
		RateLimitRequests:    100,
		RateLimitWindow:      time.Minute,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNew_FileBackendSeedsRoster(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer a.Close()

	members, err := a.Store.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 2)
	assert.Equal(t, "dad", members[1].Name, "name defaults to id")
	assert.Nil(t, a.DB)
	assert.Nil(t, a.Tokens.Provider(), "no oauth credentials configured")

	sc := a.SchedulerConfig()
	assert.Equal(t, time.Minute, sc.SyncInterval)
	assert.Equal(t, 2*time.Minute, sc.SweepInterval)
}

func TestNew_RedisLedger(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t)
	cfg.StoreBackend = config.StoreMemory
	cfg.RedisURL = "redis://" + mr.Addr()

	a, err := New(context.Background(), cfg, discard())
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}

func TestNew_BadInputs(t *testing.T) {
	cfg := testConfig(t)
	cfg.TokenSealKey = "not base64!"
	_, err := New(context.Background(), cfg, discard())
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.RosterFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = New(context.Background(), cfg, discard())
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.RedisURL = "redis://127.0.0.1:1"
	_, err = New(context.Background(), cfg, discard())
	assert.Error(t, err)
}

func TestRouter_Unauthorized(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, discard())
	require.NoError(t, err)
	defer a.Close()
	router := a.Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/sync", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var pass struct {
		Members     int `json:"members"`
		NeedsReauth int `json:"needs_reauth"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pass))
	assert.Equal(t, 2, pass.Members)
	assert.Equal(t, 2, pass.NeedsReauth)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/health-data", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var members []store.Member
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	for _, m := range members {
		assert.Equal(t, store.TokenNeedsReauth, m.TokenStatus)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/member/mom/history?period=week", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, provider.SourceSynthetic, rec.Header().Get("X-Series-Source"))

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/mom", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "vitalsync_sync_members_total")
}
