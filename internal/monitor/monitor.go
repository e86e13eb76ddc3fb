// Package monitor is the outward face of the sync engine: the operations the
// HTTP layer and CLI call to authorize members, read their data and trigger
// passes.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"

	"github.com/albapepper/vitalsync/internal/provider"
	"github.com/albapepper/vitalsync/internal/scheduler"
	"github.com/albapepper/vitalsync/internal/store"
	"github.com/albapepper/vitalsync/internal/token"
)

// StateTTL bounds how long an authorization handshake may take.
const StateTTL = 10 * time.Minute

var (
	// ErrOAuthNotConfigured is returned when no identity provider is set up.
	ErrOAuthNotConfigured = errors.New("oauth not configured")
	// ErrInvalidState is returned for an unknown, expired or reused state.
	ErrInvalidState = errors.New("invalid or expired authorization state")
	// ErrNoReading is returned when a member has never been synced.
	ErrNoReading = errors.New("no reading stored")
)

// HistoryFetcher produces a provider-backed historical series.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, memberID string, period provider.Period) (provider.Series, error)
}

// Engine runs sync passes and sweeps.
type Engine interface {
	RunSyncPass(ctx context.Context) scheduler.PassResult
	RunAlertSweep(ctx context.Context) scheduler.SweepResult
	Last() (*scheduler.PassResult, *scheduler.SweepResult)
}

// Service implements the outward operations.
type Service struct {
	profiles store.ProfileStore
	tokens   *token.Manager
	history  HistoryFetcher
	engine   Engine
	states   *gocache.Cache
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a Service.
func New(profiles store.ProfileStore, tokens *token.Manager, history HistoryFetcher, engine Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		profiles: profiles,
		tokens:   tokens,
		history:  history,
		engine:   engine,
		states:   gocache.New(StateTTL, time.Minute),
		now:      time.Now,
		logger:   logger,
	}
}

// --------------------------------------------------------------------------
// Authorization handshake
// --------------------------------------------------------------------------

// TriggerAuthorization returns the consent URL for the member. The URL's
// state parameter is a single-use nonce bound to the member.
func (s *Service) TriggerAuthorization(ctx context.Context, memberID string) (string, error) {
	idp := s.tokens.Provider()
	if idp == nil {
		return "", ErrOAuthNotConfigured
	}
	if _, err := s.member(ctx, memberID); err != nil {
		return "", err
	}
	state := uuid.NewString()
	s.states.Set(state, memberID, gocache.DefaultExpiration)
	s.logger.Info("Generated auth URL", "member_id", memberID)
	return idp.AuthCodeURL(state), nil
}

// CompleteAuthorization finishes the handshake identified by state: it
// exchanges the code, stores the credential bundle and refreshes the member's
// name and contact address from the provider's user info. It returns the
// member id.
func (s *Service) CompleteAuthorization(ctx context.Context, state, code string) (string, error) {
	idp := s.tokens.Provider()
	if idp == nil {
		return "", ErrOAuthNotConfigured
	}
	v, ok := s.states.Get(state)
	if !ok {
		return "", ErrInvalidState
	}
	s.states.Delete(state)
	memberID := v.(string)

	rec, err := idp.Exchange(ctx, code)
	if err != nil {
		return memberID, fmt.Errorf("complete authorization for %s: %w", memberID, err)
	}
	if err := s.tokens.Store(ctx, memberID, rec); err != nil {
		return memberID, err
	}

	info, err := idp.UserInfo(ctx, rec.AccessToken)
	if err != nil {
		s.logger.Warn("User info lookup failed", "member_id", memberID, "error", err)
		return memberID, nil
	}
	err = store.UpdateMember(ctx, s.profiles, memberID, func(m *store.Member) {
		if info.Email != "" {
			m.Email = info.Email
		}
		if info.Name != "" {
			m.Name = info.Name
		}
	})
	if err != nil {
		s.logger.Warn("Failed to update member identity", "member_id", memberID, "error", err)
	}
	s.logger.Info("Authorization complete", "member_id", memberID)
	return memberID, nil
}

// --------------------------------------------------------------------------
// Reads
// --------------------------------------------------------------------------

// ListMembers returns every member profile. Credentials are never part of a
// profile.
func (s *Service) ListMembers(ctx context.Context) ([]store.Member, error) {
	members, err := s.profiles.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if members == nil {
		members = []store.Member{}
	}
	return members, nil
}

// GetLatestReading returns the member's stored reading.
func (s *Service) GetLatestReading(ctx context.Context, memberID string) (provider.Reading, error) {
	m, err := s.member(ctx, memberID)
	if err != nil {
		return provider.Reading{}, err
	}
	if m.Latest == nil {
		return provider.Reading{}, ErrNoReading
	}
	return *m.Latest, nil
}

// GetHistoricalSeries returns the member's series for the period. Any
// provider failure yields a synthetic series marked SourceSynthetic.
func (s *Service) GetHistoricalSeries(ctx context.Context, memberID string, period provider.Period) (provider.Series, error) {
	if _, err := s.member(ctx, memberID); err != nil {
		return provider.Series{}, err
	}
	if s.history != nil {
		series, err := s.history.FetchHistory(ctx, memberID, period)
		if err == nil {
			return series, nil
		}
		if ctx.Err() != nil {
			return provider.Series{}, ctx.Err()
		}
		s.logger.Warn("History unavailable, serving synthetic series", "member_id", memberID, "period", period, "error", err)
	}
	now := s.now()
	rng := rand.New(rand.NewPCG(uint64(now.UnixNano()), uint64(len(memberID))))
	return provider.SyntheticSeries(memberID, period, now, rng), nil
}

// NeedsReauthentication reports whether the member must redo the handshake.
func (s *Service) NeedsReauthentication(ctx context.Context, memberID string) bool {
	return s.tokens.NeedsReauthentication(ctx, memberID)
}

// --------------------------------------------------------------------------
// Passes
// --------------------------------------------------------------------------

// RunSyncPass runs one sync pass now.
func (s *Service) RunSyncPass(ctx context.Context) scheduler.PassResult {
	return s.engine.RunSyncPass(ctx)
}

// RunAlertSweep runs one alert sweep now.
func (s *Service) RunAlertSweep(ctx context.Context) scheduler.SweepResult {
	return s.engine.RunAlertSweep(ctx)
}

// LastPasses returns the most recent sync pass and sweep, nil if none ran.
func (s *Service) LastPasses() (*scheduler.PassResult, *scheduler.SweepResult) {
	return s.engine.Last()
}

func (s *Service) member(ctx context.Context, memberID string) (store.Member, error) {
	members, err := s.profiles.ReadAll(ctx)
	if err != nil {
		return store.Member{}, fmt.Errorf("read profiles: %w", err)
	}
	m, ok := store.FindMember(members, memberID)
	if !ok {
		return store.Member{}, fmt.Errorf("member %s: %w", memberID, store.ErrNotFound)
	}
	return m, nil
}
