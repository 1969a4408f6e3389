package cluster

import (
	"time"

	"github.com/google/uuid"

	"github.com/yte121/openswarm-sub013/memory"
)

// NodeStatus is a node's observed availability.
type NodeStatus string

const (
	NodeOnline  NodeStatus = "online"
	NodeOffline NodeStatus = "offline"
	NodeSyncing NodeStatus = "syncing"
	NodeFailed  NodeStatus = "failed"
)

// Node describes one member of the cluster.
type Node struct {
	ID         string     `json:"id"`
	Address    string     `json:"address"`
	Status     NodeStatus `json:"status"`
	LastSeen   time.Time  `json:"lastSeen"`
	Partitions []string   `json:"partitions,omitempty"`
	Load       float64    `json:"load"`
	Capacity   int64      `json:"capacity"`
}

// OpType classifies a sync operation.
type OpType string

const (
	OpCreate OpType = "create"
	OpUpdate OpType = "update"
	OpDelete OpType = "delete"
	OpBatch  OpType = "batch"

	// Partition lifecycle propagation.
	OpPartitionCreate OpType = "partition_create"
	OpPartitionDelete OpType = "partition_delete"
)

// OpStatus is a sync operation's delivery state.
type OpStatus string

const (
	OpPending    OpStatus = "pending"
	OpInProgress OpStatus = "in_progress"
	OpCompleted  OpStatus = "completed"
	OpFailed     OpStatus = "failed"
)

// SyncOperation is one queued replication unit. Delivery transitions
// pending -> in_progress -> completed|failed; failed operations are retried
// on a later cycle, never immediately.
type SyncOperation struct {
	ID        string `json:"id"`
	Type      OpType `json:"type"`
	Partition string `json:"partition,omitempty"`

	Entry           *memory.Entry     `json:"entry,omitempty"`
	Entries         []*memory.Entry   `json:"entries,omitempty"`
	PartitionRecord *memory.Partition `json:"partitionRecord,omitempty"`

	// Key/Namespace identify the target of a delete.
	Key       string `json:"key,omitempty"`
	Namespace string `json:"namespace,omitempty"`

	Timestamp time.Time   `json:"timestamp"`
	Clock     VectorClock `json:"clock"`
	Origin    string      `json:"origin"`
	Targets   []string    `json:"targets"`
	Status    OpStatus    `json:"status"`

	// Attempts counts delivery tries; NextAttempt gates retry scheduling.
	Attempts    int       `json:"attempts"`
	NextAttempt time.Time `json:"nextAttempt,omitempty"`
}

func newSyncOperation(opType OpType, origin string, clock VectorClock) *SyncOperation {
	return &SyncOperation{
		ID:        uuid.NewString(),
		Type:      opType,
		Timestamp: time.Now(),
		Clock:     clock.Clone(),
		Origin:    origin,
		Status:    OpPending,
	}
}
