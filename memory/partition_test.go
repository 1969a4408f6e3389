package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPartitionCreateAndSelect(t *testing.T) {
	m := newTestManager(t)

	p, err := m.CreatePartition("agents", "agents", PartitionOptions{Indexed: true})
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "agents", p.Name)

	// First partition of a type becomes its routing target.
	assert.Equal(t, p.ID, m.SelectPartition("agents").ID)

	// Unknown types fall back to the default partition.
	fallback := m.SelectPartition("unknown-type")
	require.NotNil(t, fallback)
	assert.Equal(t, "default", fallback.Name)
}

func TestPartitionDuplicateName(t *testing.T) {
	m := newTestManager(t)

	_, err := m.CreatePartition("dup", "a", PartitionOptions{})
	require.NoError(t, err)
	_, err = m.CreatePartition("dup", "b", PartitionOptions{})
	assert.ErrorIs(t, err, ErrPartitionExists)
}

func TestPartitionDeleteCascades(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	p, err := m.CreatePartition("scratch", "scratch", PartitionOptions{})
	require.NoError(t, err)

	_, err = m.Store(ctx, "k1", []byte("v"), &StoreOptions{Partition: p.ID})
	require.NoError(t, err)
	_, err = m.Store(ctx, "k2", []byte("v"), &StoreOptions{Partition: p.ID})
	require.NoError(t, err)

	require.NoError(t, m.DeletePartition(ctx, p.ID))

	// Entries went with the partition.
	value, err := m.Retrieve(ctx, "k1", "")
	require.NoError(t, err)
	assert.Nil(t, value)

	entries, err := m.Query(ctx, QueryFilter{Partition: p.ID})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPartitionDeleteDefaultRejected(t *testing.T) {
	m := newTestManager(t)
	def := m.SelectPartition("generic")
	require.NotNil(t, def)
	err := m.DeletePartition(context.Background(), def.ID)
	assert.ErrorIs(t, err, ErrInvalidConfiguration)
}

func TestPartitionAccounting(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	p, err := m.CreatePartition("counted", "counted", PartitionOptions{})
	require.NoError(t, err)

	_, err = m.Store(ctx, "k", []byte("v"), &StoreOptions{Partition: p.ID})
	require.NoError(t, err)

	got := m.parts.Get(p.ID)
	require.NotNil(t, got)
	assert.Equal(t, int64(1), got.EntryCount)
	assert.Greater(t, got.UsedSize, int64(0))

	// Overwriting does not double count.
	_, err = m.Store(ctx, "k", []byte("longer value"), &StoreOptions{Partition: p.ID})
	require.NoError(t, err)
	got = m.parts.Get(p.ID)
	assert.Equal(t, int64(1), got.EntryCount)

	_, err = m.Delete(ctx, "k", "")
	require.NoError(t, err)
	got = m.parts.Get(p.ID)
	assert.Equal(t, int64(0), got.EntryCount)
	assert.Equal(t, int64(0), got.UsedSize)
}

func TestPartitionCapacityRejectsOversizedEntry(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	p, err := m.CreatePartition("tiny", "tiny", PartitionOptions{MaxSize: 64})
	require.NoError(t, err)

	big := make([]byte, 4096)
	_, err = m.Store(ctx, "huge", big, &StoreOptions{Partition: p.ID})
	assert.ErrorIs(t, err, ErrCapacityExceeded)
}
