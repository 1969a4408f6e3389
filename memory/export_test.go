package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExportImportRoundTrip(t *testing.T) {
	src := newTestManager(t)
	ctx := context.Background()

	p, err := src.CreatePartition("knowledge", "knowledge", PartitionOptions{Shared: true})
	require.NoError(t, err)
	_, err = src.Store(ctx, "fact-1", []byte("water is wet"), &StoreOptions{Partition: p.ID})
	require.NoError(t, err)
	_, err = src.Store(ctx, "fact-2", []byte("fire is hot"), nil)
	require.NoError(t, err)

	snap, err := src.Export(ctx)
	require.NoError(t, err)
	assert.Equal(t, SnapshotFormatVersion, snap.FormatVersion)
	assert.Len(t, snap.Entries, 2)
	require.NotNil(t, snap.Statistics)

	dst := newTestManager(t)
	require.NoError(t, dst.Import(ctx, snap))

	value, err := dst.Retrieve(ctx, "fact-1", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("water is wet"), value)

	// The partition record traveled with the snapshot.
	var found bool
	for _, dp := range dst.Partitions() {
		if dp.Name == "knowledge" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestExportSkipsExpired(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	_, err := m.Store(ctx, "live", []byte("v"), nil)
	require.NoError(t, err)
	_, err = m.Store(ctx, "dead", []byte("v"), &StoreOptions{TTL: 10 * time.Millisecond})
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)

	snap, err := m.Export(ctx)
	require.NoError(t, err)
	require.Len(t, snap.Entries, 1)
	assert.Equal(t, "live", snap.Entries[0].Key)
}

func TestImportIdempotent(t *testing.T) {
	src := newTestManager(t)
	ctx := context.Background()

	_, err := src.Store(ctx, "k", []byte("original"), nil)
	require.NoError(t, err)
	snap, err := src.Export(ctx)
	require.NoError(t, err)

	dst := newTestManager(t)
	require.NoError(t, dst.Import(ctx, snap))

	// Local progress after the snapshot must survive a re-import.
	_, err = dst.Update(ctx, "k", "", []byte("newer"), 0)
	require.NoError(t, err)
	require.NoError(t, dst.Import(ctx, snap))

	value, err := dst.Retrieve(ctx, "k", "")
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), value)

	stats, err := dst.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Entries, "repeated imports must not duplicate")
}
