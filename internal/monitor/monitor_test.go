package monitor

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/vitalsync/internal/provider"
	"github.com/albapepper/vitalsync/internal/scheduler"
	"github.com/albapepper/vitalsync/internal/store"
	"github.com/albapepper/vitalsync/internal/token"
)

type fakeIDP struct {
	exchangeErr error
	info        token.UserInfo
	infoErr     error
}

func (f *fakeIDP) AuthCodeURL(state string) string {
	return "https://accounts.example/auth?state=" + url.QueryEscape(state)
}

func (f *fakeIDP) Exchange(ctx context.Context, code string) (store.TokenRecord, error) {
	if f.exchangeErr != nil {
		return store.TokenRecord{}, f.exchangeErr
	}
	return store.TokenRecord{AccessToken: "access-" + code, RefreshToken: "refresh"}, nil
}

func (f *fakeIDP) Refresh(ctx context.Context, rt string) (store.TokenRecord, error) {
	return store.TokenRecord{}, errors.New("unused")
}

func (f *fakeIDP) UserInfo(ctx context.Context, accessToken string) (token.UserInfo, error) {
	return f.info, f.infoErr
}

type fakeHistory struct {
	series provider.Series
	err    error
}

func (f fakeHistory) FetchHistory(ctx context.Context, id string, p provider.Period) (provider.Series, error) {
	return f.series, f.err
}

type fakeEngine struct{ syncs, sweeps int }

func (f *fakeEngine) RunSyncPass(ctx context.Context) scheduler.PassResult {
	f.syncs++
	return scheduler.PassResult{Members: 1}
}

func (f *fakeEngine) RunAlertSweep(ctx context.Context) scheduler.SweepResult {
	f.sweeps++
	return scheduler.SweepResult{Members: 1}
}

func (f *fakeEngine) Last() (*scheduler.PassResult, *scheduler.SweepResult) {
	if f.syncs == 0 {
		return nil, nil
	}
	return &scheduler.PassResult{Members: 1}, nil
}

func setupService(t *testing.T, idp token.IdentityProvider, history HistoryFetcher) (*Service, *store.Memory) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory(store.Member{ID: "mom", Name: "Mom"})
	tokens := token.NewManager(mem, idp, logger, token.WithProfiles(mem))
	return New(mem, tokens, history, &fakeEngine{}, logger), mem
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestService_Authorization_RoundTrip(t *testing.T) {
	idp := &fakeIDP{info: token.UserInfo{Email: "real@example.com", Name: "Margaret"}}
	svc, mem := setupService(t, idp, nil)
	ctx := context.Background()

	authURL, err := svc.TriggerAuthorization(ctx, "mom")
	require.NoError(t, err)
	state := stateFrom(t, authURL)
	assert.NotEqual(t, "mom", state, "state must not be the bare member id")

	memberID, err := svc.CompleteAuthorization(ctx, state, "c1")
	require.NoError(t, err)
	assert.Equal(t, "mom", memberID)

	rec, err := mem.Get(ctx, "mom")
	require.NoError(t, err)
	assert.Equal(t, "access-c1", rec.AccessToken)

	members, err := svc.ListMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "real@example.com", members[0].Email)
	assert.Equal(t, "Margaret", members[0].Name)
	assert.Equal(t, store.TokenActive, members[0].TokenStatus)
	assert.False(t, svc.NeedsReauthentication(ctx, "mom"))
}

func TestService_CompleteAuthorization_StateSingleUse(t *testing.T) {
	svc, _ := setupService(t, &fakeIDP{}, nil)
	ctx := context.Background()

	authURL, err := svc.TriggerAuthorization(ctx, "mom")
	require.NoError(t, err)
	state := stateFrom(t, authURL)

	_, err = svc.CompleteAuthorization(ctx, state, "c1")
	require.NoError(t, err)
	_, err = svc.CompleteAuthorization(ctx, state, "c2")
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = svc.CompleteAuthorization(ctx, "forged", "c3")
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestService_CompleteAuthorization_ExchangeFails(t *testing.T) {
	svc, mem := setupService(t, &fakeIDP{exchangeErr: errors.New("invalid_grant")}, nil)
	ctx := context.Background()

	authURL, err := svc.TriggerAuthorization(ctx, "mom")
	require.NoError(t, err)
	_, err = svc.CompleteAuthorization(ctx, stateFrom(t, authURL), "bad")
	require.Error(t, err)

	_, err = mem.Get(ctx, "mom")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_CompleteAuthorization_UserInfoFailureStillStores(t *testing.T) {
	svc, mem := setupService(t, &fakeIDP{infoErr: errors.New("timeout")}, nil)
	ctx := context.Background()

	authURL, err := svc.TriggerAuthorization(ctx, "mom")
	require.NoError(t, err)
	_, err = svc.CompleteAuthorization(ctx, stateFrom(t, authURL), "c1")
	require.NoError(t, err)

	_, err = mem.Get(ctx, "mom")
	assert.NoError(t, err)
}

func TestService_TriggerAuthorization_Errors(t *testing.T) {
	svc, _ := setupService(t, &fakeIDP{}, nil)
	_, err := svc.TriggerAuthorization(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)

	noOAuth, _ := setupService(t, nil, nil)
	_, err = noOAuth.TriggerAuthorization(context.Background(), "mom")
	assert.ErrorIs(t, err, ErrOAuthNotConfigured)
}

func TestService_GetLatestReading(t *testing.T) {
	svc, mem := setupService(t, nil, nil)
	ctx := context.Background()

	_, err := svc.GetLatestReading(ctx, "mom")
	assert.ErrorIs(t, err, ErrNoReading)

	hr := 71.0
	require.NoError(t, store.UpdateMember(ctx, mem, "mom", func(m *store.Member) {
		m.Latest = &provider.Reading{HeartRate: &hr}
	}))
	r, err := svc.GetLatestReading(ctx, "mom")
	require.NoError(t, err)
	assert.Equal(t, 71.0, *r.HeartRate)

	_, err = svc.GetLatestReading(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_GetHistoricalSeries_Provider(t *testing.T) {
	want := provider.Series{MemberID: "mom", Source: provider.SourceProvider, Days: make([]provider.DayReading, 7)}
	svc, _ := setupService(t, nil, fakeHistory{series: want})

	got, err := svc.GetHistoricalSeries(context.Background(), "mom", provider.PeriodWeek)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestService_GetHistoricalSeries_SyntheticFallback(t *testing.T) {
	svc, _ := setupService(t, nil, fakeHistory{err: token.ErrNeedsReauth})
	svc.now = func() time.Time { return time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC) }

	got, err := svc.GetHistoricalSeries(context.Background(), "mom", provider.PeriodMonth)
	require.NoError(t, err)
	assert.Equal(t, provider.SourceSynthetic, got.Source)
	assert.Len(t, got.Days, 30)
}

func TestService_Passes(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	mem := store.NewMemory()
	eng := &fakeEngine{}
	svc := New(mem, token.NewManager(mem, nil, logger), nil, eng, logger)

	sync, _ := svc.LastPasses()
	assert.Nil(t, sync)

	svc.RunSyncPass(context.Background())
	svc.RunAlertSweep(context.Background())
	sync, _ = svc.LastPasses()
	assert.NotNil(t, sync)
	assert.Equal(t, 1, eng.syncs)
	assert.Equal(t, 1, eng.sweeps)
}
