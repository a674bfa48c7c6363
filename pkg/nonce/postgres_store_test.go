package nonce

import (
	"context"
	"errors"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRow struct {
	val bool
	err error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*bool)) = r.val
	return nil
}

type fakeExecutor struct {
	tag     string
	err     error
	row     fakeRow
	lastSQL string
	args    []any
}

func (f *fakeExecutor) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL = sql
	f.args = args
	if f.err != nil {
		return pgconn.CommandTag{}, f.err
	}
	return pgconn.NewCommandTag(f.tag), nil
}

func (f *fakeExecutor) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL = sql
	f.args = args
	return f.row
}

func TestPostgresStore_Claim(t *testing.T) {
	t.Parallel()

	now := time.UnixMilli(1700000000000)

	t.Run("row inserted", func(t *testing.T) {
		t.Parallel()

		db := &fakeExecutor{tag: "INSERT 0 1"}
		s := NewPostgresStore(db, WithTTL(time.Hour))

		ok, err := s.Claim(context.Background(), "n1", "biz_1", now)
		require.NoError(t, err)
		assert.True(t, ok)

		assert.Contains(t, db.lastSQL, "ON CONFLICT (nonce_key)")
		require.Len(t, db.args, 4)
		assert.Equal(t, Key("n1"), db.args[0])
		assert.Equal(t, "biz_1", db.args[1])
		assert.Equal(t, now.UTC(), db.args[2])
		assert.Equal(t, now.Add(time.Hour).UTC(), db.args[3])
	})

	t.Run("conflict with live record", func(t *testing.T) {
		t.Parallel()

		s := NewPostgresStore(&fakeExecutor{tag: "INSERT 0 0"})

		ok, err := s.Claim(context.Background(), "n1", "biz_1", now)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("backend error fails closed", func(t *testing.T) {
		t.Parallel()

		boom := errors.New("connection refused")
		s := NewPostgresStore(&fakeExecutor{err: boom})

		ok, err := s.Claim(context.Background(), "n1", "biz_1", now)
		assert.False(t, ok)
		assert.ErrorIs(t, err, ErrStoreUnavailable)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("empty nonce", func(t *testing.T) {
		t.Parallel()

		db := &fakeExecutor{tag: "INSERT 0 1"}
		s := NewPostgresStore(db)

		_, err := s.Claim(context.Background(), "", "biz_1", now)
		assert.ErrorIs(t, err, ErrEmptyNonce)
		assert.Empty(t, db.lastSQL)
	})
}

func TestPostgresStore_IsClaimed(t *testing.T) {
	t.Parallel()

	db := &fakeExecutor{row: fakeRow{val: true}}
	s := NewPostgresStore(db)

	claimed, err := s.IsClaimed(context.Background(), "n1")
	require.NoError(t, err)
	assert.True(t, claimed)
	assert.Equal(t, Key("n1"), db.args[0])

	s = NewPostgresStore(&fakeExecutor{row: fakeRow{err: errors.New("timeout")}})
	_, err = s.IsClaimed(context.Background(), "n1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestPostgresStore_Purge(t *testing.T) {
	t.Parallel()

	db := &fakeExecutor{tag: "DELETE 7"}
	s := NewPostgresStore(db)

	n, err := s.Purge(context.Background(), time.UnixMilli(1700000000000))
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.True(t, strings.HasPrefix(strings.TrimSpace(db.lastSQL), "DELETE FROM consumed_nonces"))
}

func TestMigrations_Embedded(t *testing.T) {
	t.Parallel()

	entries, err := fs.ReadDir(Migrations, MigrationsDir)
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	data, err := fs.ReadFile(Migrations, MigrationsDir+"/"+entries[0].Name())
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- +goose Up")
	assert.Contains(t, string(data), "consumed_nonces")
}
