package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupSweepsExpired(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Store(ctx, "live", []byte("v"), nil)
	require.NoError(t, err)
	for _, key := range []string{"e1", "e2"} {
		_, err := m.Store(ctx, key, []byte("v"), &StoreOptions{TTL: 10 * time.Millisecond})
		require.NoError(t, err)
	}

	time.Sleep(30 * time.Millisecond)

	removed, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	// The backend no longer holds the swept entries.
	all, err := m.Backend().AllEntries(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "live", all[0].Key)

	// Partition accounting followed the sweep.
	def := m.SelectPartition("generic")
	require.NotNil(t, def)
	assert.Equal(t, int64(1), def.EntryCount)
}

func TestCleanupNothingExpired(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Store(ctx, "k", []byte("v"), nil)
	require.NoError(t, err)

	removed, err := m.Cleanup(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestFlushDirtyWritesBackAccessStats(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Store(ctx, "k", []byte("v"), nil)
	require.NoError(t, err)

	// Reads update access bookkeeping in the cache only.
	for i := 0; i < 3; i++ {
		_, err := m.Retrieve(ctx, "k", "")
		require.NoError(t, err)
	}
	stored, err := m.Backend().RetrieveByKey(ctx, "k", "test")
	require.NoError(t, err)
	assert.Zero(t, stored.AccessCount, "access stats not persisted before flush")

	m.flushDirty(ctx)

	flushed, err := m.Backend().RetrieveByKey(ctx, "k", "test")
	require.NoError(t, err)
	assert.Equal(t, int64(3), flushed.AccessCount)
	assert.Empty(t, m.cache.DirtyEntries(), "flushed entries marked clean")
}

func TestFlushDirtyDropsDeletedEntries(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Store(ctx, "k", []byte("v"), nil)
	require.NoError(t, err)
	_, err = m.Retrieve(ctx, "k", "")
	require.NoError(t, err)

	// Delete behind the cache's back, then flush.
	entry, err := m.Backend().RetrieveByKey(ctx, "k", "test")
	require.NoError(t, err)
	require.NoError(t, m.Backend().Delete(ctx, entry.ID))

	m.flushDirty(ctx)

	_, ok := m.cache.Get("k", "test")
	assert.False(t, ok, "cache entry for a deleted record is dropped")
}
