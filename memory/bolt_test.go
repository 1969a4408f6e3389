package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBolt(t *testing.T) *BoltBackend {
	t.Helper()
	b := NewBoltBackend(t.TempDir(), &NoOpLogger{})
	require.NoError(t, b.Initialize(context.Background()))
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestBoltSchemaMigrations(t *testing.T) {
	b := newTestBolt(t)
	version, err := b.SchemaVersion()
	require.NoError(t, err)
	assert.Equal(t, uint64(len(boltMigrations)), version)
}

func TestBoltStoreRetrieve(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	e := NewEntry("k", "ns", []byte("v"))
	require.NoError(t, b.Store(ctx, e))

	byID, err := b.Retrieve(ctx, e.ID)
	require.NoError(t, err)
	assert.Equal(t, "k", byID.Key)

	byKey, err := b.RetrieveByKey(ctx, "k", "ns")
	require.NoError(t, err)
	assert.Equal(t, e.ID, byKey.ID)

	_, err = b.Retrieve(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = b.RetrieveByKey(ctx, "k", "other-ns")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBoltKeyUniqueness(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	first := NewEntry("k", "ns", []byte("v1"))
	require.NoError(t, b.Store(ctx, first))

	// A second record at the same (key, namespace) displaces the first.
	second := NewEntry("k", "ns", []byte("v2"))
	require.NoError(t, b.Store(ctx, second))

	got, err := b.RetrieveByKey(ctx, "k", "ns")
	require.NoError(t, err)
	assert.Equal(t, second.ID, got.ID)

	_, err = b.Retrieve(ctx, first.ID)
	assert.ErrorIs(t, err, ErrNotFound, "displaced record is gone")
}

func TestBoltPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	b := NewBoltBackend(dir, &NoOpLogger{})
	require.NoError(t, b.Initialize(ctx))
	e := NewEntry("durable", "ns", []byte("v"))
	require.NoError(t, b.Store(ctx, e))
	require.NoError(t, b.Close())

	reopened := NewBoltBackend(dir, &NoOpLogger{})
	require.NoError(t, reopened.Initialize(ctx))
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.RetrieveByKey(ctx, "durable", "ns")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got.Value)
}

func TestBoltNamespaceScan(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	require.NoError(t, b.Store(ctx, NewEntry("a", "alpha", []byte("v"))))
	require.NoError(t, b.Store(ctx, NewEntry("b", "alpha", []byte("v"))))
	require.NoError(t, b.Store(ctx, NewEntry("c", "alphabet", []byte("v"))))

	// The namespace index must not treat "alphabet" as part of "alpha".
	entries, err := b.Query(ctx, QueryFilter{Namespace: "alpha"})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestBoltDelete(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()

	e := NewEntry("k", "ns", []byte("v"))
	require.NoError(t, b.Store(ctx, e))
	require.NoError(t, b.Delete(ctx, e.ID))

	_, err := b.RetrieveByKey(ctx, "k", "ns")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.ErrorIs(t, b.Delete(ctx, e.ID), ErrNotFound)
}

func TestBoltClosedBackend(t *testing.T) {
	b := newTestBolt(t)
	ctx := context.Background()
	require.NoError(t, b.Close())

	err := b.Store(ctx, NewEntry("k", "ns", []byte("v")))
	assert.ErrorIs(t, err, ErrNotInitialized)
}
