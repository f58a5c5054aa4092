package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mlevaskis/tierauth"
)

// Schema creates the table backing [Postgres]. Run it through the host's
// migration tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS tierauth_tokens (
	id           TEXT PRIMARY KEY,
	token        TEXT NOT NULL,
	user_id      TEXT NOT NULL DEFAULT '',
	visitor_hash TEXT NOT NULL,
	address      TEXT NOT NULL,
	user_agent   TEXT NOT NULL,
	issued_at    TIMESTAMPTZ NOT NULL,
	expires_at   TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS tierauth_tokens_token_idx ON tierauth_tokens (token);
CREATE INDEX IF NOT EXISTS tierauth_tokens_client_idx ON tierauth_tokens (address, user_agent);
`

// Postgres is a pgx-backed TokenStore. Unlike the Redis store it retains
// expired rows, which keeps the full audit trail queryable.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres describes the newpostgres operation and its observable behavior.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Find describes the find operation and its observable behavior.
func (s *Postgres) Find(ctx context.Context, filter tierauth.TokenFilter) ([]tierauth.TokenRecord, error) {
	query := `
		SELECT id, token, user_id, visitor_hash, address, user_agent, issued_at, expires_at
		FROM tierauth_tokens
	`

	var conds []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if filter.Token != "" {
		conds = append(conds, "token = "+arg(filter.Token))
	}
	if filter.Address != "" {
		conds = append(conds, "address = "+arg(filter.Address))
	}
	if filter.UserAgent != "" {
		conds = append(conds, "user_agent = "+arg(filter.UserAgent))
	}
	if !filter.ActiveAt.IsZero() {
		conds = append(conds, "expires_at > "+arg(filter.ActiveAt))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY issued_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT " + arg(filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []tierauth.TokenRecord
	for rows.Next() {
		var record tierauth.TokenRecord
		if err := rows.Scan(
			&record.ID,
			&record.Token,
			&record.UserID,
			&record.VisitorHash,
			&record.Address,
			&record.UserAgent,
			&record.IssuedAt,
			&record.ExpiresAt,
		); err != nil {
			return nil, err
		}
		out = append(out, record)
	}
	return out, rows.Err()
}

// Insert describes the insert operation and its observable behavior.
func (s *Postgres) Insert(ctx context.Context, record tierauth.TokenRecord) (tierauth.TokenRecord, error) {
	record.ID = uuid.New().String()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tierauth_tokens (
			id, token, user_id, visitor_hash, address, user_agent, issued_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		record.ID,
		record.Token,
		record.UserID,
		record.VisitorHash,
		record.Address,
		record.UserAgent,
		record.IssuedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return tierauth.TokenRecord{}, err
	}
	return record, nil
}

// Update describes the update operation and its observable behavior.
func (s *Postgres) Update(ctx context.Context, id string, mutation tierauth.TokenMutation) error {
	var sets []string
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if mutation.Token != nil {
		sets = append(sets, "token = "+arg(*mutation.Token))
	}
	if mutation.UserID != nil {
		sets = append(sets, "user_id = "+arg(*mutation.UserID))
	}
	if mutation.IssuedAt != nil {
		sets = append(sets, "issued_at = "+arg(*mutation.IssuedAt))
	}
	if mutation.ExpiresAt != nil {
		sets = append(sets, "expires_at = "+arg(*mutation.ExpiresAt))
	}
	if len(sets) == 0 {
		return nil
	}

	tag, err := s.pool.Exec(ctx,
		"UPDATE tierauth_tokens SET "+strings.Join(sets, ", ")+" WHERE id = "+arg(id),
		args...,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

var _ tierauth.TokenStore = (*Postgres)(nil)
