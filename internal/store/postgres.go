package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/vitalsync/internal/db"
	"github.com/albapepper/vitalsync/internal/provider"
)

// Postgres stores profiles and credentials in PostgreSQL through the
// statements prepared by package db.
type Postgres struct {
	pool   *db.Pool
	sealer *Sealer
}

// NewPostgres wraps an open pool.
func NewPostgres(pool *db.Pool, sealer *Sealer) *Postgres {
	return &Postgres{pool: pool, sealer: sealer}
}

func (p *Postgres) ReadAll(ctx context.Context) ([]Member, error) {
	rows, err := p.pool.Query(ctx, "members_all")
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var out []Member
	for rows.Next() {
		var (
			m        Member
			email    *string
			latest   []byte
			status   string
			lastSync *time.Time
			lastChk  *time.Time
		)
		if err := rows.Scan(&m.ID, &m.Name, &email, &latest, &lastSync, &status, &lastChk); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if email != nil {
			m.Email = *email
		}
		if len(latest) > 0 {
			var r provider.Reading
			if err := json.Unmarshal(latest, &r); err != nil {
				return nil, fmt.Errorf("decode latest for %s: %w", m.ID, err)
			}
			m.Latest = &r
		}
		m.LastSync = lastSync
		m.LastTokenCheck = lastChk
		m.TokenStatus = TokenStatus(status)
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return out, nil
}

// WriteAll upserts every member in one transaction. Rows absent from members
// are left in place; members are never deleted.
func (p *Postgres) WriteAll(ctx context.Context, members []Member) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, m := range members {
		var latest []byte
		if m.Latest != nil {
			if latest, err = json.Marshal(m.Latest); err != nil {
				return fmt.Errorf("encode latest for %s: %w", m.ID, err)
			}
		}
		status := m.TokenStatus
		if status == "" {
			status = TokenUnknown
		}
		batch.Queue("member_upsert", m.ID, m.Name, nullable(m.Email), latest, m.LastSync, string(status), m.LastTokenCheck)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("upsert members: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (p *Postgres) Get(ctx context.Context, memberID string) (TokenRecord, error) {
	var (
		rec     TokenRecord
		refresh *string
		typ     *string
		expiry  *time.Time
	)
	err := p.pool.QueryRow(ctx, "token_get", memberID).
		Scan(&rec.AccessToken, &refresh, &typ, &rec.Scopes, &expiry, &rec.IssuedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return TokenRecord{}, ErrNotFound
	}
	if err != nil {
		return TokenRecord{}, fmt.Errorf("query token: %w", err)
	}
	if refresh != nil {
		rec.RefreshToken = *refresh
	}
	if typ != nil {
		rec.TokenType = *typ
	}
	if expiry != nil {
		rec.Expiry = *expiry
	}
	return p.sealer.openRecord(rec)
}

func (p *Postgres) Put(ctx context.Context, memberID string, rec TokenRecord) error {
	sealed, err := p.sealer.sealRecord(rec)
	if err != nil {
		return fmt.Errorf("seal credentials: %w", err)
	}
	var expiry *time.Time
	if !sealed.Expiry.IsZero() {
		expiry = &sealed.Expiry
	}
	_, err = p.pool.Exec(ctx, "token_put", memberID, sealed.AccessToken, nullable(sealed.RefreshToken),
		nullable(sealed.TokenType), sealed.Scopes, expiry, sealed.IssuedAt)
	if err != nil {
		return fmt.Errorf("upsert token: %w", err)
	}
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
