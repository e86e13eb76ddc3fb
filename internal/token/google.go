package token

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/endpoints"

	"github.com/albapepper/vitalsync/internal/store"
)

// Scopes requested during the authorization handshake.
var Scopes = []string{
	"https://www.googleapis.com/auth/fitness.heart_rate.read",
	"https://www.googleapis.com/auth/fitness.activity.read",
	"https://www.googleapis.com/auth/fitness.sleep.read",
	"https://www.googleapis.com/auth/fitness.blood_pressure.read",
	"https://www.googleapis.com/auth/fitness.oxygen_saturation.read",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

const defaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

// GoogleConfig configures the Google identity provider. Endpoint and
// UserInfoURL default to Google's production endpoints.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Endpoint     oauth2.Endpoint
	UserInfoURL  string
	Timeout      time.Duration
}

// Google implements IdentityProvider against Google's OAuth2 endpoints.
type Google struct {
	oauth       *oauth2.Config
	http        *resty.Client
	userInfoURL string
}

// NewGoogle creates a Google identity provider.
func NewGoogle(cfg GoogleConfig) *Google {
	ep := cfg.Endpoint
	if ep.AuthURL == "" {
		ep = endpoints.Google
	}
	uiURL := cfg.UserInfoURL
	if uiURL == "" {
		uiURL = defaultUserInfoURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Google{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Endpoint:     ep,
			Scopes:       Scopes,
		},
		http:        resty.New().SetTimeout(timeout),
		userInfoURL: uiURL,
	}
}

// AuthCodeURL returns the consent URL. Offline access with a forced consent
// prompt makes Google issue a refresh token on every handshake.
func (g *Google) AuthCodeURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.SetAuthURLParam("prompt", "consent"))
}

func (g *Google) Exchange(ctx context.Context, code string) (store.TokenRecord, error) {
	tok, err := g.oauth.Exchange(g.withClient(ctx), code)
	if err != nil {
		return store.TokenRecord{}, fmt.Errorf("exchange authorization code: %w", err)
	}
	return recordFromToken(tok), nil
}

func (g *Google) Refresh(ctx context.Context, refreshToken string) (store.TokenRecord, error) {
	src := g.oauth.TokenSource(g.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return store.TokenRecord{}, fmt.Errorf("refresh access token: %w", err)
	}
	return recordFromToken(tok), nil
}

type userInfoResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

func (g *Google) UserInfo(ctx context.Context, accessToken string) (UserInfo, error) {
	var out userInfoResponse
	resp, err := g.http.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&out).
		Get(g.userInfoURL)
	if err != nil {
		return UserInfo{}, fmt.Errorf("userinfo request: %w", err)
	}
	if resp.IsError() {
		return UserInfo{}, fmt.Errorf("userinfo returned %d", resp.StatusCode())
	}
	return UserInfo{Email: out.Email, Name: out.Name}, nil
}

// withClient routes oauth2 token calls through resty's transport so both
// share timeouts.
func (g *Google) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, g.http.GetClient())
}

func recordFromToken(tok *oauth2.Token) store.TokenRecord {
	rec := store.TokenRecord{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		rec.Scopes = strings.Fields(scope)
	}
	return rec
}
