package audit

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "audit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store := NewStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.Record(ctx, Entry{OccurredAt: at, RequestID: "r1", Signer: "s1", Method: "POST", Path: "/api/v1/wagers", Status: 201}))
	require.NoError(t, store.Record(ctx, Entry{OccurredAt: at.Add(time.Second), RequestID: "r2", Signer: "s2", Method: "POST", Path: "/api/v1/wagers/1/join", Status: 409, Error: "not_joinable"}))

	entries, err := store.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, "r2", entries[0].RequestID)
	require.Equal(t, "not_joinable", entries[0].Error)
	require.Equal(t, at, entries[1].OccurredAt)

	entries, err = store.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestMigrateIsRepeatable(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, store.Migrate(context.Background()))
}
