// Package store holds the durable state of the service: member profiles and
// the credential bundles that authorize provider access on their behalf.
//
// The two are deliberately separate stores. Profiles are served to the
// dashboard as-is; credentials never leave this package's callers in the
// token lifecycle manager.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/albapepper/vitalsync/internal/provider"
)

// ErrNotFound is returned when a member or credential record does not exist.
var ErrNotFound = errors.New("not found")

// TokenStatus is the credential state reported on a member profile.
type TokenStatus string

const (
	TokenUnknown     TokenStatus = "unknown"
	TokenActive      TokenStatus = "active"
	TokenNeedsReauth TokenStatus = "needs_reauth"
)

// Member is a tracked individual. Members come from the static roster and are
// never deleted by the sync engine.
type Member struct {
	ID             string            `json:"id" yaml:"id"`
	Name           string            `json:"name" yaml:"name"`
	Email          string            `json:"email,omitempty" yaml:"email"`
	Latest         *provider.Reading `json:"latest,omitempty" yaml:"-"`
	LastSync       *time.Time        `json:"last_sync,omitempty" yaml:"-"`
	TokenStatus    TokenStatus       `json:"token_status" yaml:"-"`
	LastTokenCheck *time.Time        `json:"last_token_check,omitempty" yaml:"-"`
}

// TokenRecord is the credential bundle for one member.
type TokenRecord struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	Scopes       []string  `json:"scopes,omitempty"`
	Expiry       time.Time `json:"expiry,omitempty"`
	IssuedAt     time.Time `json:"issued_at"`
}

// Renewable reports whether the record can be refreshed without user
// interaction.
func (r TokenRecord) Renewable() bool {
	return r.RefreshToken != ""
}

// ProfileStore persists the member collection. There is no partial update;
// callers read-modify-write the whole collection.
type ProfileStore interface {
	ReadAll(ctx context.Context) ([]Member, error)
	WriteAll(ctx context.Context, members []Member) error
}

// CredentialStore persists token records keyed by member id.
type CredentialStore interface {
	Get(ctx context.Context, memberID string) (TokenRecord, error)
	Put(ctx context.Context, memberID string, rec TokenRecord) error
}

// FindMember returns the member with the given id.
func FindMember(members []Member, id string) (Member, bool) {
	for _, m := range members {
		if m.ID == id {
			return m, true
		}
	}
	return Member{}, false
}

// UpdateMember re-reads the collection, applies fn to one member and writes
// the collection back. Re-reading narrows the window in which a concurrent
// writer's changes to other members are lost.
func UpdateMember(ctx context.Context, ps ProfileStore, id string, fn func(*Member)) error {
	members, err := ps.ReadAll(ctx)
	if err != nil {
		return fmt.Errorf("read profiles: %w", err)
	}
	for i := range members {
		if members[i].ID == id {
			fn(&members[i])
			if err := ps.WriteAll(ctx, members); err != nil {
				return fmt.Errorf("write profiles: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("member %s: %w", id, ErrNotFound)
}
