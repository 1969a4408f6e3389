package cluster

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yte121/openswarm-sub013/memory"
)

func newTestTransport(t *testing.T) (*RedisTransport, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	tr, err := NewRedisTransport("redis://"+mr.Addr(), 10*time.Second, &memory.NoOpLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tr.Close() })
	return tr, mr
}

func TestRedisTransportBadURL(t *testing.T) {
	_, err := NewRedisTransport("not-a-url", time.Second, nil)
	assert.ErrorIs(t, err, memory.ErrInvalidConfiguration)
}

func TestTransportMembership(t *testing.T) {
	tr, mr := newTestTransport(t)
	ctx := context.Background()

	require.NoError(t, tr.Announce(ctx, &Node{ID: "n1", Address: "host-1:7000", Status: NodeOnline}))
	require.NoError(t, tr.Announce(ctx, &Node{ID: "n2", Address: "host-2:7000", Status: NodeOnline}))

	nodes, err := tr.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)

	// A lapsed liveness key reports the node offline but keeps membership.
	mr.FastForward(15 * time.Second)
	nodes, err = tr.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 2)
	for _, n := range nodes {
		assert.Equal(t, NodeOffline, n.Status)
	}

	// A heartbeat revives the record.
	require.NoError(t, tr.Heartbeat(ctx, &Node{ID: "n1", Status: NodeOnline}))
	nodes, err = tr.Nodes(ctx)
	require.NoError(t, err)
	statuses := map[string]NodeStatus{}
	for _, n := range nodes {
		statuses[n.ID] = n.Status
	}
	assert.Equal(t, NodeOnline, statuses["n1"])
	assert.Equal(t, NodeOffline, statuses["n2"])

	// Explicit removal withdraws membership entirely.
	require.NoError(t, tr.Remove(ctx, "n2"))
	nodes, err = tr.Nodes(ctx)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, "n1", nodes[0].ID)
}

func TestTransportOpQueue(t *testing.T) {
	tr, _ := newTestTransport(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		op := newSyncOperation(OpCreate, "n1", VectorClock{"n1": uint64(i + 1)})
		op.Key = fmt.Sprintf("k%d", i)
		require.NoError(t, tr.PushOp(ctx, "n2", op))
	}

	// Drain respects the batch bound and FIFO order.
	ops, err := tr.PopOps(ctx, "n2", 3)
	require.NoError(t, err)
	require.Len(t, ops, 3)
	assert.Equal(t, "k0", ops[0].Key)
	assert.Equal(t, "k2", ops[2].Key)

	ops, err = tr.PopOps(ctx, "n2", 10)
	require.NoError(t, err)
	require.Len(t, ops, 2)
	assert.Equal(t, "k3", ops[0].Key)

	// Empty queue drains to nothing.
	ops, err = tr.PopOps(ctx, "n2", 10)
	require.NoError(t, err)
	assert.Empty(t, ops)
}

func TestTransportOpQueueRoundTripsClock(t *testing.T) {
	tr, _ := newTestTransport(t)
	ctx := context.Background()

	op := newSyncOperation(OpDelete, "n1", VectorClock{"n1": 7, "n2": 3})
	op.Key = "k"
	op.Namespace = "ns"
	require.NoError(t, tr.PushOp(ctx, "n2", op))

	ops, err := tr.PopOps(ctx, "n2", 1)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, VectorClock{"n1": 7, "n2": 3}, ops[0].Clock)
	assert.Equal(t, OpDelete, ops[0].Type)
}

func TestTransportEntryMirror(t *testing.T) {
	tr, mr := newTestTransport(t)
	ctx := context.Background()

	entry := memory.NewEntry("k", "ns", []byte("v"))
	require.NoError(t, tr.MirrorEntry(ctx, "n1", entry))

	got, err := tr.FetchEntry(ctx, "n1", "k", "ns")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, entry.ID, got.ID)
	assert.Equal(t, []byte("v"), got.Value)

	// Missing mirrors are absent, not errors.
	got, err = tr.FetchEntry(ctx, "n1", "other", "ns")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, tr.DropMirror(ctx, "n1", "k", "ns"))
	got, err = tr.FetchEntry(ctx, "n1", "k", "ns")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Mirrors of TTL'd entries carry the entry expiry.
	expiring := memory.NewEntry("temp", "ns", []byte("v"))
	expiring.SetTTL(5 * time.Second)
	require.NoError(t, tr.MirrorEntry(ctx, "n1", expiring))
	mr.FastForward(10 * time.Second)
	got, err = tr.FetchEntry(ctx, "n1", "temp", "ns")
	require.NoError(t, err)
	assert.Nil(t, got)
}
