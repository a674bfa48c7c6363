package nonce

import (
	"context"
	"embed"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Migrations holds the goose migrations for the consumed_nonces table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations that goose should read.
const MigrationsDir = "migrations"

// The conflict branch only overwrites rows that have already expired, so a
// live record always wins and the statement stays a single atomic write.
const (
	qClaim = `
INSERT INTO consumed_nonces (nonce_key, subject_id, consumed_at, expires_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (nonce_key) DO UPDATE
SET subject_id = EXCLUDED.subject_id,
    consumed_at = EXCLUDED.consumed_at,
    expires_at = EXCLUDED.expires_at
WHERE consumed_nonces.expires_at <= EXCLUDED.consumed_at;
`
	qIsClaimed = `
SELECT EXISTS (
    SELECT 1 FROM consumed_nonces WHERE nonce_key = $1 AND expires_at > $2
);
`
	qPurge = `
DELETE FROM consumed_nonces WHERE expires_at <= $1;
`
)

// pgExecutor is the subset of *pgxpool.Pool the store needs.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps consumption records in the consumed_nonces table.
type PostgresStore struct {
	db  pgExecutor
	cfg config
}

var _ Store = (*PostgresStore)(nil)

func NewPostgresStore(db pgExecutor, opts ...Option) *PostgresStore {
	return &PostgresStore{
		db:  db,
		cfg: applyOptions(opts),
	}
}

func (s *PostgresStore) Claim(ctx context.Context, nonce, subjectID string, now time.Time) (bool, error) {
	if nonce == "" {
		return false, ErrEmptyNonce
	}

	rec := newRecord(nonce, subjectID, now, s.cfg.ttl)
	tag, err := s.db.Exec(ctx, qClaim, rec.Key, rec.SubjectID, rec.ConsumedAt, rec.ExpiresAt)
	if err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PostgresStore) IsClaimed(ctx context.Context, nonce string) (bool, error) {
	var exists bool
	if err := s.db.QueryRow(ctx, qIsClaimed, Key(nonce), s.cfg.clock().UTC()).Scan(&exists); err != nil {
		return false, errors.Join(ErrStoreUnavailable, err)
	}
	return exists, nil
}

// Purge deletes records expired at now.
func (s *PostgresStore) Purge(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, qPurge, now.UTC())
	if err != nil {
		return 0, errors.Join(ErrStoreUnavailable, err)
	}
	return tag.RowsAffected(), nil
}
