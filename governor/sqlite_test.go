package governor

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLiteStore(t *testing.T) *SQLiteCounterStore {
	t.Helper()
	store, err := NewSQLiteCounterStore(SQLiteConfig{
		DBPath: filepath.Join(t.TempDir(), "usage.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLiteIncrements(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	require.NoError(t, store.IncrBy(ctx, "usage:global:2026-03-14", fieldRequests, 1))
	require.NoError(t, store.IncrBy(ctx, "usage:global:2026-03-14", fieldRequests, 1))
	require.NoError(t, store.IncrBy(ctx, "usage:global:2026-03-14", fieldTokens, 1500))
	require.NoError(t, store.IncrByFloat(ctx, "usage:global:2026-03-14", fieldCost, 0.00125))

	fields, err := store.Fields(ctx, "usage:global:2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, "2", fields[fieldRequests])
	assert.Equal(t, "1500", fields[fieldTokens])
	assert.Equal(t, "0.00125", fields[fieldCost])
}

func TestSQLiteKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	require.NoError(t, store.IncrBy(ctx, "usage:client:a:2026-03-14", fieldRequests, 5))
	require.NoError(t, store.IncrBy(ctx, "usage:client:b:2026-03-14", fieldRequests, 1))

	fields, err := store.Fields(ctx, "usage:client:a:2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, "5", fields[fieldRequests])

	fields, err = store.Fields(ctx, "usage:client:b:2026-03-14")
	require.NoError(t, err)
	assert.Equal(t, "1", fields[fieldRequests])
}

func TestSQLiteMissingKeyIsEmptyNotError(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	fields, err := store.Fields(ctx, "usage:global:1999-01-01")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestSQLiteLazyExpiry(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	require.NoError(t, store.IncrBy(ctx, "k", fieldRequests, 1))
	require.NoError(t, store.Expire(ctx, "k", -time.Second))

	fields, err := store.Fields(ctx, "k")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestSQLiteCloseStopsCleanupSweep(t *testing.T) {
	store := newTestSQLiteStore(t)
	require.NoError(t, store.Close())

	select {
	case <-store.done:
	case <-time.After(time.Second):
		t.Fatal("cleanup sweep still running after Close")
	}
}

func TestSQLiteExpireRefresh(t *testing.T) {
	ctx := context.Background()
	store := newTestSQLiteStore(t)

	require.NoError(t, store.IncrBy(ctx, "k", fieldRequests, 1))
	require.NoError(t, store.Expire(ctx, "k", time.Hour))
	require.NoError(t, store.Expire(ctx, "k", 2*time.Hour))

	fields, err := store.Fields(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "1", fields[fieldRequests])
}
