// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema bootstrap and health checking.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/vitalsync/internal/config"
)

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Tables must exist before statements referencing them can be prepared.
	if err := ensureSchema(ctx, poolCfg.ConnConfig); err != nil {
		return nil, err
	}

	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

func ensureSchema(ctx context.Context, connCfg *pgx.ConnConfig) error {
	conn, err := pgx.ConnectConfig(ctx, connCfg.Copy())
	if err != nil {
		return fmt.Errorf("connect for schema: %w", err)
	}
	defer conn.Close(ctx)

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

const schema = `
CREATE TABLE IF NOT EXISTS members (
	id               TEXT PRIMARY KEY,
	name             TEXT NOT NULL,
	email            TEXT,
	latest           JSONB,
	last_sync        TIMESTAMPTZ,
	token_status     TEXT NOT NULL DEFAULT 'unknown',
	last_token_check TIMESTAMPTZ,
	updated_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS member_tokens (
	member_id     TEXT PRIMARY KEY,
	access_token  TEXT NOT NULL,
	refresh_token TEXT,
	token_type    TEXT,
	scopes        TEXT[],
	expiry        TIMESTAMPTZ,
	issued_at     TIMESTAMPTZ NOT NULL,
	updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`

// registerPreparedStatements registers all statements the stores use.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Profiles
		"members_all": "SELECT id, name, email, latest, last_sync, token_status, last_token_check FROM members ORDER BY id",
		"member_upsert": `INSERT INTO members (id, name, email, latest, last_sync, token_status, last_token_check)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (id) DO UPDATE SET
				name = EXCLUDED.name,
				email = EXCLUDED.email,
				latest = EXCLUDED.latest,
				last_sync = EXCLUDED.last_sync,
				token_status = EXCLUDED.token_status,
				last_token_check = EXCLUDED.last_token_check,
				updated_at = NOW()`,

		// Credentials
		"token_get": "SELECT access_token, refresh_token, token_type, scopes, expiry, issued_at FROM member_tokens WHERE member_id = $1",
		"token_put": `INSERT INTO member_tokens (member_id, access_token, refresh_token, token_type, scopes, expiry, issued_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (member_id) DO UPDATE SET
				access_token = EXCLUDED.access_token,
				refresh_token = EXCLUDED.refresh_token,
				token_type = EXCLUDED.token_type,
				scopes = EXCLUDED.scopes,
				expiry = EXCLUDED.expiry,
				issued_at = EXCLUDED.issued_at,
				updated_at = NOW()`,
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
