package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/vitalsync/internal/cache"
	"github.com/albapepper/vitalsync/internal/config"
	"github.com/albapepper/vitalsync/internal/metrics"
	"github.com/albapepper/vitalsync/internal/provider"
	"github.com/albapepper/vitalsync/internal/scheduler"
	"github.com/albapepper/vitalsync/internal/store"
)

type stubService struct{}

func (stubService) TriggerAuthorization(ctx context.Context, id string) (string, error) {
	return "https://accounts.example/auth", nil
}
func (stubService) CompleteAuthorization(ctx context.Context, state, code string) (string, error) {
	return "mom", nil
}
func (stubService) ListMembers(ctx context.Context) ([]store.Member, error) {
	return []store.Member{{ID: "mom"}}, nil
}
func (stubService) GetLatestReading(ctx context.Context, id string) (provider.Reading, error) {
	return provider.Reading{}, nil
}
func (stubService) GetHistoricalSeries(ctx context.Context, id string, p provider.Period) (provider.Series, error) {
	return provider.Series{Period: p, Source: provider.SourceSynthetic}, nil
}
func (stubService) NeedsReauthentication(ctx context.Context, id string) bool { return false }
func (stubService) RunSyncPass(ctx context.Context) scheduler.PassResult { return scheduler.PassResult{} }
func (stubService) RunAlertSweep(ctx context.Context) scheduler.SweepResult {
	return scheduler.SweepResult{}
}

func (stubService) LastPasses() (*scheduler.PassResult, *scheduler.SweepResult) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		CORSAllowOrigins:  []string{"http://localhost:5173"},
		RateLimitEnabled:  false,
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
	}
}

func TestRouter_Routes(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))
	router := NewRouter(stubService{}, cache.New(true), nil, reg, testConfig())

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/auth/mom", http.StatusFound},
		{http.MethodGet, "/auth/google/callback?code=c&state=s", http.StatusOK},
		{http.MethodGet, "/api/health-data", http.StatusOK},
		{http.MethodGet, "/api/member/mom/latest", http.StatusOK},
		{http.MethodGet, "/api/member/mom/history?period=month", http.StatusOK},
		{http.MethodPost, "/api/sync", http.StatusOK},
		{http.MethodPost, "/api/alerts/sweep", http.StatusOK},
		{http.MethodGet, "/api/sync", http.StatusMethodNotAllowed},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
			assert.Equal(t, tc.want, rec.Code)
			assert.NotEmpty(t, rec.Header().Get("X-Process-Time"))
		})
	}
}

func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	router := NewRouter(stubService{}, cache.New(false), nil, prometheus.NewRegistry(), testConfig())
	counter := metrics.HTTPRequests.WithLabelValues(http.MethodGet, "/api/member/{memberID}/latest", "200")
	before := testutil.ToFloat64(counter)

	for _, id := range []string{"mom", "dad"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/member/"+id+"/latest", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	assert.Equal(t, before+2, testutil.ToFloat64(counter))
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	codes := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, http.StatusNoContent, codes[0])
	assert.Equal(t, http.StatusTooManyRequests, codes[2])

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code, "limits are per client")
}
