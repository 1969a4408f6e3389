package cluster

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/yte121/openswarm-sub013/memory"
)

// Transport moves cluster traffic between nodes: announcements, heartbeats,
// sync-operation queues, and entry mirrors for strong-consistency reads.
type Transport interface {
	// Announce registers or refreshes this node's membership record.
	Announce(ctx context.Context, node *Node) error
	// Heartbeat refreshes the liveness TTL for the node.
	Heartbeat(ctx context.Context, node *Node) error
	// Nodes returns every announced node. Nodes whose liveness record has
	// lapsed are reported with an empty LastSeen.
	Nodes(ctx context.Context) ([]*Node, error)
	// Remove withdraws a node from membership on explicit departure.
	Remove(ctx context.Context, nodeID string) error

	// PushOp appends a sync operation to the target node's queue.
	PushOp(ctx context.Context, targetID string, op *SyncOperation) error
	// PopOps drains up to max operations from this node's queue.
	PopOps(ctx context.Context, nodeID string, max int) ([]*SyncOperation, error)

	// MirrorEntry publishes a node's durable record for remote reads.
	MirrorEntry(ctx context.Context, nodeID string, entry *memory.Entry) error
	// DropMirror removes a published record after a delete.
	DropMirror(ctx context.Context, nodeID, key, namespace string) error
	// FetchEntry reads a peer's mirrored record, or nil when absent.
	FetchEntry(ctx context.Context, nodeID, key, namespace string) (*memory.Entry, error)

	Close() error
}

const transportNamespace = "openswarm"

// RedisTransport implements Transport on Redis. Membership lives in a set
// plus per-node TTL keys; sync queues are per-node lists; entry mirrors are
// plain keys scoped by node and (namespace, key).
type RedisTransport struct {
	client  *redis.Client
	liveTTL time.Duration
	logger  memory.Logger
}

// NewRedisTransport connects to redisURL and verifies the connection.
// liveTTL is the heartbeat liveness window; a node whose key lapses is
// considered unreachable until it reannounces.
func NewRedisTransport(redisURL string, liveTTL time.Duration, logger memory.Logger) (*RedisTransport, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Redis URL: %w", memory.ErrInvalidConfiguration)
	}
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 5 * time.Second
	opt.WriteTimeout = 5 * time.Second

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to Redis: %w", err)
	}

	if logger == nil {
		logger = &memory.NoOpLogger{}
	}
	if liveTTL <= 0 {
		liveTTL = 30 * time.Second
	}
	return &RedisTransport{client: client, liveTTL: liveTTL, logger: logger}, nil
}

func membersKey() string        { return transportNamespace + ":cluster:members" }
func nodeKey(id string) string  { return transportNamespace + ":cluster:node:" + id }
func queueKey(id string) string { return transportNamespace + ":cluster:queue:" + id }

func mirrorKey(id, ns, key string) string {
	return transportNamespace + ":cluster:entry:" + id + ":" + ns + "\x00" + key
}

func (t *RedisTransport) Announce(ctx context.Context, node *Node) error {
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", node.ID, err)
	}
	pipe := t.client.TxPipeline()
	pipe.SAdd(ctx, membersKey(), node.ID)
	pipe.Set(ctx, nodeKey(node.ID), data, t.liveTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("announce node %s: %w", node.ID, err)
	}
	return nil
}

func (t *RedisTransport) Heartbeat(ctx context.Context, node *Node) error {
	node.LastSeen = time.Now()
	data, err := json.Marshal(node)
	if err != nil {
		return fmt.Errorf("marshal node %s: %w", node.ID, err)
	}
	return t.client.Set(ctx, nodeKey(node.ID), data, t.liveTTL).Err()
}

func (t *RedisTransport) Nodes(ctx context.Context) ([]*Node, error) {
	ids, err := t.client.SMembers(ctx, membersKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	nodes := make([]*Node, 0, len(ids))
	for _, id := range ids {
		data, err := t.client.Get(ctx, nodeKey(id)).Result()
		if err == redis.Nil {
			// Liveness lapsed but membership remains until explicit removal.
			nodes = append(nodes, &Node{ID: id, Status: NodeOffline})
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("get node %s: %w", id, err)
		}
		node := &Node{}
		if err := json.Unmarshal([]byte(data), node); err != nil {
			return nil, fmt.Errorf("decode node %s: %w", id, err)
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

func (t *RedisTransport) Remove(ctx context.Context, nodeID string) error {
	pipe := t.client.TxPipeline()
	pipe.SRem(ctx, membersKey(), nodeID)
	pipe.Del(ctx, nodeKey(nodeID), queueKey(nodeID))
	_, err := pipe.Exec(ctx)
	return err
}

func (t *RedisTransport) PushOp(ctx context.Context, targetID string, op *SyncOperation) error {
	data, err := json.Marshal(op)
	if err != nil {
		return fmt.Errorf("marshal op %s: %w", op.ID, err)
	}
	return t.client.RPush(ctx, queueKey(targetID), data).Err()
}

func (t *RedisTransport) PopOps(ctx context.Context, nodeID string, max int) ([]*SyncOperation, error) {
	if max <= 0 {
		max = 64
	}
	key := queueKey(nodeID)
	pipe := t.client.TxPipeline()
	items := pipe.LRange(ctx, key, 0, int64(max-1))
	pipe.LTrim(ctx, key, int64(max), -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("drain queue %s: %w", nodeID, err)
	}

	raw, err := items.Result()
	if err != nil {
		return nil, err
	}
	ops := make([]*SyncOperation, 0, len(raw))
	for _, item := range raw {
		op := &SyncOperation{}
		if err := json.Unmarshal([]byte(item), op); err != nil {
			t.logger.Warn("Dropping undecodable sync operation", map[string]interface{}{
				"node_id": nodeID,
				"error":   err.Error(),
			})
			continue
		}
		ops = append(ops, op)
	}
	return ops, nil
}

func (t *RedisTransport) MirrorEntry(ctx context.Context, nodeID string, entry *memory.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal entry %s: %w", entry.ID, err)
	}
	var ttl time.Duration
	if entry.ExpiresAt != nil {
		ttl = time.Until(*entry.ExpiresAt)
		if ttl <= 0 {
			return t.DropMirror(ctx, nodeID, entry.Key, entry.Namespace)
		}
	}
	return t.client.Set(ctx, mirrorKey(nodeID, entry.Namespace, entry.Key), data, ttl).Err()
}

func (t *RedisTransport) DropMirror(ctx context.Context, nodeID, key, namespace string) error {
	return t.client.Del(ctx, mirrorKey(nodeID, namespace, key)).Err()
}

func (t *RedisTransport) FetchEntry(ctx context.Context, nodeID, key, namespace string) (*memory.Entry, error) {
	data, err := t.client.Get(ctx, mirrorKey(nodeID, namespace, key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("fetch entry from %s: %w", nodeID, err)
	}
	entry := &memory.Entry{}
	if err := json.Unmarshal([]byte(data), entry); err != nil {
		return nil, fmt.Errorf("decode entry from %s: %w", nodeID, err)
	}
	return entry, nil
}

func (t *RedisTransport) Close() error {
	return t.client.Close()
}
