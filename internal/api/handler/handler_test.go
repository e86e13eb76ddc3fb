package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/albapepper/vitalsync/internal/api/respond"
	"github.com/albapepper/vitalsync/internal/cache"
	"github.com/albapepper/vitalsync/internal/monitor"
	"github.com/albapepper/vitalsync/internal/provider"
	"github.com/albapepper/vitalsync/internal/scheduler"
	"github.com/albapepper/vitalsync/internal/store"
)

type fakeService struct {
	members     []store.Member
	listCalls   int
	latest      map[string]provider.Reading
	series      provider.Series
	seriesCalls int
	authURL     string
	authErr     error
	completeID  string
	completeErr error
	reauth      bool
	syncs       int
	passCtxErrs []error
}

func (f *fakeService) TriggerAuthorization(ctx context.Context, id string) (string, error) {
	return f.authURL, f.authErr
}

func (f *fakeService) CompleteAuthorization(ctx context.Context, state, code string) (string, error) {
	return f.completeID, f.completeErr
}

func (f *fakeService) ListMembers(ctx context.Context) ([]store.Member, error) {
	f.listCalls++
	return f.members, nil
}

func (f *fakeService) GetLatestReading(ctx context.Context, id string) (provider.Reading, error) {
	if id == "ghost" {
		return provider.Reading{}, fmt.Errorf("member %s: %w", id, store.ErrNotFound)
	}
	r, ok := f.latest[id]
	if !ok {
		return provider.Reading{}, monitor.ErrNoReading
	}
	return r, nil
}

func (f *fakeService) GetHistoricalSeries(ctx context.Context, id string, p provider.Period) (provider.Series, error) {
	f.seriesCalls++
	s := f.series
	s.Period = p
	return s, nil
}

func (f *fakeService) NeedsReauthentication(ctx context.Context, id string) bool { return f.reauth }

func (f *fakeService) RunSyncPass(ctx context.Context) scheduler.PassResult {
	f.syncs++
	f.passCtxErrs = append(f.passCtxErrs, ctx.Err())
	return scheduler.PassResult{Members: 2, Updated: 2}
}

func (f *fakeService) RunAlertSweep(ctx context.Context) scheduler.SweepResult {
	f.passCtxErrs = append(f.passCtxErrs, ctx.Err())
	return scheduler.SweepResult{Members: 2, Evaluated: 1}
}

func (f *fakeService) LastPasses() (*scheduler.PassResult, *scheduler.SweepResult) {
	if f.syncs == 0 {
		return nil, nil
	}
	return &scheduler.PassResult{Members: 2, Updated: 2}, nil
}

type fakeDB struct{ err error }

func (f fakeDB) HealthCheck(ctx context.Context) error { return f.err }

func newTestRouter(svc Service, db HealthChecker) http.Handler {
	h := New(svc, cache.New(true), db)
	r := chi.NewRouter()
	r.Get("/health", h.HealthCheck)
	r.Get("/auth/google/callback", h.AuthCallback)
	r.Get("/auth/{memberID}", h.StartAuth)
	r.Get("/api/health-data", h.ListMembers)
	r.Get("/api/member/{memberID}/latest", h.GetLatest)
	r.Get("/api/member/{memberID}/auth-status", h.GetAuthStatus)
	r.Get("/api/member/{memberID}/history", h.GetHistory)
	r.Get("/api/member/{memberID}/history.xlsx", h.GetHistoryXLSX)
	r.Post("/api/sync", h.RunSync)
	r.Post("/api/alerts/sweep", h.RunSweep)
	return r
}

func do(t *testing.T, h http.Handler, method, target string, hdr map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range hdr {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func weekSeries(source string) provider.Series {
	start := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	days := make([]provider.DayReading, 7)
	for i := range days {
		days[i] = provider.DayReading{Date: start.AddDate(0, 0, i), Steps: 5000, HeartRate: 70}
	}
	return provider.Series{MemberID: "mom", Source: source, Days: days}
}

func TestHealthCheck(t *testing.T) {
	rec := do(t, newTestRouter(&fakeService{}, nil), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "last_passes")

	rec = do(t, newTestRouter(&fakeService{syncs: 1}, nil), http.MethodGet, "/health", nil)
	assert.Contains(t, rec.Body.String(), "members=2")

	rec = do(t, newTestRouter(&fakeService{}, fakeDB{err: errors.New("down")}), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "disconnected")
}

func TestStartAuth(t *testing.T) {
	svc := &fakeService{authURL: "https://accounts.example/auth?state=n1"}
	rec := do(t, newTestRouter(svc, nil), http.MethodGet, "/auth/mom", nil)
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, svc.authURL, rec.Header().Get("Location"))

	svc.authErr = monitor.ErrOAuthNotConfigured
	rec = do(t, newTestRouter(svc, nil), http.MethodGet, "/auth/mom", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "OAUTH_NOT_CONFIGURED", errorCode(t, rec))

	svc.authErr = fmt.Errorf("member x: %w", store.ErrNotFound)
	rec = do(t, newTestRouter(svc, nil), http.MethodGet, "/auth/x", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAuthCallback(t *testing.T) {
	tests := []struct {
		name     string
		svc      *fakeService
		query    string
		wantCode int
		wantErr  string
	}{
		{"success", &fakeService{completeID: "mom"}, "?code=c&state=s", http.StatusOK, ""},
		{"missing params", &fakeService{}, "?code=c", http.StatusBadRequest, "MISSING_PARAMS"},
		{"consent denied", &fakeService{}, "?error=access_denied", http.StatusBadRequest, "CONSENT_DENIED"},
		{"bad state", &fakeService{completeErr: monitor.ErrInvalidState}, "?code=c&state=s", http.StatusBadRequest, "INVALID_STATE"},
		{"exchange failed", &fakeService{completeID: "mom", completeErr: errors.New("invalid_grant")}, "?code=c&state=s", http.StatusBadGateway, "EXCHANGE_FAILED"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(t, newTestRouter(tc.svc, nil), http.MethodGet, "/auth/google/callback"+tc.query, nil)
			assert.Equal(t, tc.wantCode, rec.Code)
			if tc.wantErr != "" {
				assert.Equal(t, tc.wantErr, errorCode(t, rec))
			} else {
				assert.Contains(t, rec.Body.String(), `"member_id":"mom"`)
			}
		})
	}
}

func TestListMembers_CachedWithETag(t *testing.T) {
	svc := &fakeService{members: []store.Member{{ID: "mom", Name: "Mom"}}}
	router := newTestRouter(svc, nil)

	rec := do(t, router, http.MethodGet, "/api/health-data", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"))
	etag := rec.Header().Get("ETag")
	require.NotEmpty(t, etag)

	var members []store.Member
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &members))
	assert.Equal(t, "Mom", members[0].Name)

	rec = do(t, router, http.MethodGet, "/api/health-data", map[string]string{"If-None-Match": etag})
	assert.Equal(t, http.StatusNotModified, rec.Code)
	assert.Equal(t, 1, svc.listCalls)

	do(t, router, http.MethodPost, "/api/sync", nil)
	rec = do(t, router, http.MethodGet, "/api/health-data", nil)
	assert.Equal(t, "MISS", rec.Header().Get("X-Cache"), "sync invalidates the member list")
	assert.Equal(t, 2, svc.listCalls)
}

func TestGetLatest(t *testing.T) {
	hr := 72.0
	svc := &fakeService{latest: map[string]provider.Reading{"mom": {HeartRate: &hr}}}
	router := newTestRouter(svc, nil)

	rec := do(t, router, http.MethodGet, "/api/member/mom/latest", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "72")

	rec = do(t, router, http.MethodGet, "/api/member/dad/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NO_READING", errorCode(t, rec))

	rec = do(t, router, http.MethodGet, "/api/member/ghost/latest", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MEMBER_NOT_FOUND", errorCode(t, rec))
}

func TestGetAuthStatus(t *testing.T) {
	rec := do(t, newTestRouter(&fakeService{reauth: true}, nil), http.MethodGet, "/api/member/mom/auth-status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"needs_reauth":true`)
}

func TestGetHistory_ProviderSeriesCached(t *testing.T) {
	svc := &fakeService{series: weekSeries(provider.SourceProvider)}
	router := newTestRouter(svc, nil)

	rec := do(t, router, http.MethodGet, "/api/member/mom/history?period=week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, provider.SourceProvider, rec.Header().Get(respond.SourceHeader))

	var cols provider.Columns
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cols))
	assert.Len(t, cols.Dates, 7)
	assert.Equal(t, provider.PeriodWeek, cols.Period)

	rec = do(t, router, http.MethodGet, "/api/member/mom/history?period=week", nil)
	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, provider.SourceProvider, rec.Header().Get(respond.SourceHeader))
	assert.Equal(t, 1, svc.seriesCalls)
}

func TestGetHistory_SyntheticNotCached(t *testing.T) {
	svc := &fakeService{series: weekSeries(provider.SourceSynthetic)}
	router := newTestRouter(svc, nil)

	for range 2 {
		rec := do(t, router, http.MethodGet, "/api/member/mom/history", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, provider.SourceSynthetic, rec.Header().Get(respond.SourceHeader))
		assert.Empty(t, rec.Header().Get("ETag"))
	}
	assert.Equal(t, 2, svc.seriesCalls)
}

func TestGetHistory_BadPeriod(t *testing.T) {
	rec := do(t, newTestRouter(&fakeService{}, nil), http.MethodGet, "/api/member/mom/history?period=decade", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_PERIOD", errorCode(t, rec))
}

func TestGetHistoryXLSX(t *testing.T) {
	svc := &fakeService{series: weekSeries(provider.SourceProvider)}
	rec := do(t, newTestRouter(svc, nil), http.MethodGet, "/api/member/mom/history.xlsx?period=week", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "mom-week.xlsx")

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows(f.GetSheetList()[0])
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(rows), 8)
}

func TestRunPasses(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc, nil)

	rec := do(t, router, http.MethodPost, "/api/sync", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updated":2`)
	assert.Equal(t, 1, svc.syncs)

	rec = do(t, router, http.MethodPost, "/api/alerts/sweep", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"evaluated":1`)
}

func TestRunPasses_ClientDisconnectDoesNotCancel(t *testing.T) {
	svc := &fakeService{}
	router := newTestRouter(svc, nil)

	for _, target := range []string{"/api/sync", "/api/alerts/sweep"} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, target, nil).WithContext(ctx)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, target)
	}

	require.Len(t, svc.passCtxErrs, 2)
	for _, err := range svc.passCtxErrs {
		assert.NoError(t, err)
	}
}
