// Package token owns the lifecycle of delegated provider credentials: deciding
// when an access token is stale, renewing it with the identity provider, and
// reporting each member's credential status onto their profile.
//
// State per member:
//
//	unknown ──Store──▶ active ──refresh ok──▶ active
//	                     │
//	                     └──refresh failed / no refresh token──▶ needs_reauth ──Store──▶ active
package token

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/albapepper/vitalsync/internal/metrics"
	"github.com/albapepper/vitalsync/internal/store"
)

// DefaultFreshness refreshes five minutes ahead of the provider's one hour
// access token lifetime.
const DefaultFreshness = 55 * time.Minute

// ErrNeedsReauth means no usable credential exists for a member and only a new
// authorization handshake can recover.
var ErrNeedsReauth = errors.New("member needs re-authentication")

// UserInfo is the identity returned by the provider for an access token.
type UserInfo struct {
	Email string
	Name  string
}

// IdentityProvider performs the OAuth2 exchanges.
type IdentityProvider interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (store.TokenRecord, error)
	Refresh(ctx context.Context, refreshToken string) (store.TokenRecord, error)
	UserInfo(ctx context.Context, accessToken string) (UserInfo, error)
}

// Manager is the token lifecycle manager. It is the only component that reads
// or writes the credential store.
type Manager struct {
	creds     store.CredentialStore
	profiles  store.ProfileStore
	idp       IdentityProvider
	freshness time.Duration
	now       func() time.Time
	logger    *slog.Logger
	flight    singleflight.Group
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithFreshness overrides the freshness window.
func WithFreshness(d time.Duration) Option {
	return func(m *Manager) { m.freshness = d }
}

// WithProfiles makes the manager record token status on member profiles.
func WithProfiles(ps store.ProfileStore) Option {
	return func(m *Manager) { m.profiles = ps }
}

// NewManager creates a Manager. idp may be nil when OAuth is not configured,
// in which case nothing can be refreshed.
func NewManager(creds store.CredentialStore, idp IdentityProvider, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manager{
		creds:     creds,
		idp:       idp,
		freshness: DefaultFreshness,
		now:       time.Now,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Provider returns the identity provider, or nil when OAuth is not configured.
func (m *Manager) Provider() IdentityProvider {
	return m.idp
}

// AccessToken returns a usable access token for the member, refreshing it
// first when stale. It returns ErrNeedsReauth when no record exists, the
// record cannot be renewed, or the renewal is rejected. Any other error is a
// credential store failure and leaves the member's status unchanged.
func (m *Manager) AccessToken(ctx context.Context, memberID string) (string, error) {
	tok, err := m.accessToken(ctx, memberID)
	switch {
	case err == nil:
		m.recordStatus(ctx, memberID, store.TokenActive)
	case errors.Is(err, ErrNeedsReauth):
		m.recordStatus(ctx, memberID, store.TokenNeedsReauth)
	}
	return tok, err
}

func (m *Manager) accessToken(ctx context.Context, memberID string) (string, error) {
	rec, err := m.creds.Get(ctx, memberID)
	if errors.Is(err, store.ErrNotFound) {
		m.logger.Debug("No credentials stored", "member_id", memberID)
		return "", ErrNeedsReauth
	}
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}
	if m.fresh(rec) {
		return rec.AccessToken, nil
	}
	return m.refresh(ctx, memberID)
}

// ValidAccessToken returns the member's access token and true, or false when
// none can be produced.
func (m *Manager) ValidAccessToken(ctx context.Context, memberID string) (string, bool) {
	tok, err := m.AccessToken(ctx, memberID)
	if err != nil {
		if !errors.Is(err, ErrNeedsReauth) {
			m.logger.Error("Token lookup failed", "member_id", memberID, "error", err)
		}
		return "", false
	}
	return tok, true
}

// NeedsReauthentication reports whether ValidAccessToken yields nothing.
func (m *Manager) NeedsReauthentication(ctx context.Context, memberID string) bool {
	_, ok := m.ValidAccessToken(ctx, memberID)
	return !ok
}

// Refresh renews the member's access token regardless of its age.
func (m *Manager) Refresh(ctx context.Context, memberID string) (string, bool) {
	tok, err := m.refresh(ctx, memberID)
	if err != nil {
		if errors.Is(err, ErrNeedsReauth) {
			m.recordStatus(ctx, memberID, store.TokenNeedsReauth)
		} else {
			m.logger.Error("Token refresh failed", "member_id", memberID, "error", err)
		}
		return "", false
	}
	m.recordStatus(ctx, memberID, store.TokenActive)
	return tok, true
}

// refresh collapses concurrent renewals of the same member into one provider
// call.
func (m *Manager) refresh(ctx context.Context, memberID string) (string, error) {
	v, err, _ := m.flight.Do(memberID, func() (any, error) {
		return m.doRefresh(ctx, memberID)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) doRefresh(ctx context.Context, memberID string) (string, error) {
	rec, err := m.creds.Get(ctx, memberID)
	if errors.Is(err, store.ErrNotFound) {
		return "", ErrNeedsReauth
	}
	if err != nil {
		return "", fmt.Errorf("load credentials: %w", err)
	}
	if !rec.Renewable() {
		metrics.TokenRefresh.WithLabelValues("no_refresh_token").Inc()
		m.logger.Warn("Token stale and no refresh token", "member_id", memberID)
		return "", ErrNeedsReauth
	}
	if m.idp == nil {
		metrics.TokenRefresh.WithLabelValues("failure").Inc()
		m.logger.Warn("Token stale but OAuth is not configured", "member_id", memberID)
		return "", ErrNeedsReauth
	}

	m.logger.Info("Refreshing access token", "member_id", memberID)
	renewed, err := m.idp.Refresh(ctx, rec.RefreshToken)
	if err != nil {
		metrics.TokenRefresh.WithLabelValues("failure").Inc()
		m.logger.Warn("Refresh rejected", "member_id", memberID, "error", err)
		return "", fmt.Errorf("%w: %v", ErrNeedsReauth, err)
	}

	rec.AccessToken = renewed.AccessToken
	rec.IssuedAt = m.now()
	// A renewal without an expiry falls back to the issue-time window.
	rec.Expiry = renewed.Expiry
	if renewed.TokenType != "" {
		rec.TokenType = renewed.TokenType
	}
	if err := m.creds.Put(ctx, memberID, rec); err != nil {
		metrics.TokenRefresh.WithLabelValues("failure").Inc()
		return "", fmt.Errorf("save refreshed credentials: %w", err)
	}

	metrics.TokenRefresh.WithLabelValues("success").Inc()
	m.logger.Info("Access token refreshed", "member_id", memberID)
	return rec.AccessToken, nil
}

// Store replaces the member's credential record with a freshly issued bundle.
func (m *Manager) Store(ctx context.Context, memberID string, rec store.TokenRecord) error {
	rec.IssuedAt = m.now()
	if err := m.creds.Put(ctx, memberID, rec); err != nil {
		return fmt.Errorf("store credentials: %w", err)
	}
	m.recordStatus(ctx, memberID, store.TokenActive)
	m.logger.Info("New credentials stored", "member_id", memberID, "renewable", rec.Renewable())
	return nil
}

func (m *Manager) fresh(rec store.TokenRecord) bool {
	now := m.now()
	if rec.AccessToken == "" {
		return false
	}
	if !rec.Expiry.IsZero() && !now.Before(rec.Expiry) {
		return false
	}
	return now.Sub(rec.IssuedAt) < m.freshness
}

// recordStatus writes the status onto the member profile. The token value
// itself never reaches the profile store.
func (m *Manager) recordStatus(ctx context.Context, memberID string, status store.TokenStatus) {
	if m.profiles == nil {
		return
	}
	now := m.now()
	err := store.UpdateMember(ctx, m.profiles, memberID, func(mem *store.Member) {
		mem.TokenStatus = status
		mem.LastTokenCheck = &now
	})
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		m.logger.Warn("Failed to record token status", "member_id", memberID, "error", err)
	}
}
