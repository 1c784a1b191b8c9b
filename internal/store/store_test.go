package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io/fs"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNoopRecorder(t *testing.T) {
	var r Recorder = NewNoop()
	ctx := context.Background()

	assert.NoError(t, r.Record(ctx, Record{Operation: "classify_intent", Outcome: "ok"}))

	recs, err := r.ListRecent(ctx, 10)
	assert.NoError(t, err)
	assert.Empty(t, recs)
	assert.NoError(t, r.Close())
}

func TestMigrationsAreEmbedded(t *testing.T) {
	entries, err := fs.ReadDir(migrations, "migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)

	body, err := fs.ReadFile(migrations, "migrations/"+entries[0].Name())
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "-- +goose Up"))
	assert.True(t, strings.Contains(string(body), "operation_records"))
}

type recordingConn struct {
	queries []string
	lockErr error
}

func (c *recordingConn) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	c.queries = append(c.queries, query)
	if strings.Contains(query, "pg_advisory_lock") {
		return nil, c.lockErr
	}
	return driver.RowsAffected(0), nil
}

func TestWithAdvisoryLock(t *testing.T) {
	t.Run("waits for the lock and always migrates", func(t *testing.T) {
		conn := &recordingConn{}
		ran := false

		err := withAdvisoryLock(context.Background(), conn, migrationLockID, func() error {
			require.Len(t, conn.queries, 1, "migration must run while the lock is held")
			ran = true
			return nil
		})

		require.NoError(t, err)
		assert.True(t, ran)
		require.Len(t, conn.queries, 2)
		assert.Equal(t, `SELECT pg_advisory_lock($1)`, conn.queries[0], "lock must block, not try")
		assert.Equal(t, `SELECT pg_advisory_unlock($1)`, conn.queries[1])
	})

	t.Run("migration error still unlocks", func(t *testing.T) {
		conn := &recordingConn{}
		boom := errors.New("bad migration")

		err := withAdvisoryLock(context.Background(), conn, migrationLockID, func() error { return boom })

		assert.ErrorIs(t, err, boom)
		assert.Len(t, conn.queries, 2)
	})

	t.Run("lock failure skips migration", func(t *testing.T) {
		conn := &recordingConn{lockErr: errors.New("conn reset")}

		err := withAdvisoryLock(context.Background(), conn, migrationLockID, func() error {
			t.Fatal("migration ran without the lock")
			return nil
		})

		assert.ErrorContains(t, err, "failed to acquire migration lock")
		assert.Len(t, conn.queries, 1)
	})
}
