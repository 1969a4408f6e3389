package cluster

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/yte121/openswarm-sub013/memory"
)

// Config holds cluster settings for one node.
type Config struct {
	NodeID   string `json:"nodeId" yaml:"nodeId"`
	Address  string `json:"address" yaml:"address"`
	RedisURL string `json:"redisUrl" yaml:"redisUrl"`

	// ReplicationFactor is the desired number of copies of each entry,
	// the local one included. Writes target up to ReplicationFactor-1
	// online peers.
	ReplicationFactor int `json:"replicationFactor" yaml:"replicationFactor"`

	SyncInterval      time.Duration `json:"syncInterval" yaml:"syncInterval"`
	HeartbeatInterval time.Duration `json:"heartbeatInterval" yaml:"heartbeatInterval"`
	// LivenessTTL is how long a heartbeat keeps the node visible.
	LivenessTTL time.Duration `json:"livenessTtl" yaml:"livenessTtl"`
	// MaxMissedHeartbeats marks a peer offline after this many consecutive
	// missed liveness observations.
	MaxMissedHeartbeats int `json:"maxMissedHeartbeats" yaml:"maxMissedHeartbeats"`
	// MaxBatch bounds how many inbound operations one cycle applies.
	MaxBatch int `json:"maxBatch" yaml:"maxBatch"`

	// Resolver decides concurrent conflicts. Defaults to last-writer-wins.
	Resolver memory.ConflictResolver `json:"-" yaml:"-"`
	Logger   memory.Logger           `json:"-" yaml:"-"`
}

// DefaultConfig returns cluster defaults for a small cooperating set.
func DefaultConfig() *Config {
	return &Config{
		ReplicationFactor:   2,
		SyncInterval:        2 * time.Second,
		HeartbeatInterval:   5 * time.Second,
		LivenessTTL:         30 * time.Second,
		MaxMissedHeartbeats: 3,
		MaxBatch:            64,
	}
}

// lwwResolver is the default last-writer-wins policy: later UpdatedAt wins,
// version and then ID break ties deterministically across nodes.
type lwwResolver struct{}

func (lwwResolver) Resolve(local, remote *memory.Entry) *memory.Entry {
	switch {
	case remote.UpdatedAt.After(local.UpdatedAt):
		return remote
	case local.UpdatedAt.After(remote.UpdatedAt):
		return local
	case remote.Version != local.Version:
		if remote.Version > local.Version {
			return remote
		}
		return local
	case remote.ID > local.ID:
		return remote
	}
	return local
}

type peerState struct {
	node   *Node
	missed int
}

// Engine queues local mutations for replication, applies inbound operations
// with vector-clock conflict handling, exchanges heartbeats, and maintains
// replication statistics. It implements memory.Replicator.
type Engine struct {
	cfg       *Config
	logger    memory.Logger
	manager   *memory.Manager
	transport Transport
	resolver  memory.ConflictResolver

	mu      sync.Mutex
	clock   VectorClock
	self    *Node
	pending []*SyncOperation
	peers   map[string]*peerState
	acks    map[string]int // entry ID -> delivered target count
	stats   ReplicationStats

	completedOps int64
	failedOps    int64

	readLat  *latencyWindow
	writeLat *latencyWindow
	syncLat  *latencyWindow

	loopCtx    context.Context
	loopCancel context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

// NewEngine wires a sync engine over an existing transport. Use
// NewRedisEngine to construct the transport from config.
func NewEngine(cfg *Config, manager *memory.Manager, transport Transport) (*Engine, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.NodeID == "" || manager == nil || transport == nil {
		return nil, memory.OpError("cluster.NewEngine", "config", cfg.NodeID, memory.ErrInvalidConfiguration)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = manager.Logger()
	}
	resolver := cfg.Resolver
	if resolver == nil {
		resolver = lwwResolver{}
	}
	return &Engine{
		cfg:       cfg,
		logger:    logger,
		manager:   manager,
		transport: transport,
		resolver:  resolver,
		clock:     NewVectorClock(),
		self: &Node{
			ID:      cfg.NodeID,
			Address: cfg.Address,
			Status:  NodeOnline,
		},
		peers:    make(map[string]*peerState),
		acks:     make(map[string]int),
		readLat:  newLatencyWindow(),
		writeLat: newLatencyWindow(),
		syncLat:  newLatencyWindow(),
	}, nil
}

// NewRedisEngine builds an Engine with a Redis transport from cfg.RedisURL.
func NewRedisEngine(cfg *Config, manager *memory.Manager) (*Engine, error) {
	if cfg == nil || cfg.RedisURL == "" {
		return nil, memory.OpError("cluster.NewRedisEngine", "config", "redisUrl", memory.ErrInvalidConfiguration)
	}
	logger := cfg.Logger
	if logger == nil && manager != nil {
		logger = manager.Logger()
	}
	transport, err := NewRedisTransport(cfg.RedisURL, cfg.LivenessTTL, logger)
	if err != nil {
		return nil, err
	}
	return NewEngine(cfg, manager, transport)
}

// Start announces the node, attaches the engine to the manager as its
// replicator, and launches the periodic sync and heartbeat loops.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.started {
		e.mu.Unlock()
		return memory.ErrAlreadyInitialized
	}
	e.started = true
	e.mu.Unlock()

	e.self.LastSeen = time.Now()
	if err := e.transport.Announce(ctx, e.self); err != nil {
		return memory.OpError("cluster.Start", "transport", e.cfg.NodeID, err)
	}
	e.manager.SetReplicator(e)

	e.loopCtx, e.loopCancel = context.WithCancel(context.Background())
	e.wg.Add(1)
	go e.run()

	e.logger.Info("Cluster engine started", map[string]interface{}{
		"node_id":            e.cfg.NodeID,
		"replication_factor": e.cfg.ReplicationFactor,
	})
	return nil
}

// Stop withdraws the node from membership and halts the loops. The
// transport is closed; the engine cannot be restarted.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started {
		e.mu.Unlock()
		return memory.ErrNotInitialized
	}
	e.started = false
	cancel := e.loopCancel
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.wg.Wait()

	e.manager.SetReplicator(nil)
	if err := e.transport.Remove(ctx, e.cfg.NodeID); err != nil {
		e.logger.Warn("Failed to withdraw node from membership", map[string]interface{}{
			"node_id": e.cfg.NodeID,
			"error":   err.Error(),
		})
	}
	return e.transport.Close()
}

// Replicator implementation. Enqueueing never blocks the originating write.

func (e *Engine) EntryStored(entry *memory.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Tick(e.cfg.NodeID)

	opType := OpCreate
	if entry.Version > 1 {
		opType = OpUpdate
	}
	op := newSyncOperation(opType, e.cfg.NodeID, e.clock)
	op.Entry = entry
	op.Partition = entry.Partition
	e.pending = append(e.pending, op)
}

func (e *Engine) EntryDeleted(entry *memory.Entry) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Tick(e.cfg.NodeID)

	op := newSyncOperation(OpDelete, e.cfg.NodeID, e.clock)
	op.Key = entry.Key
	op.Namespace = entry.Namespace
	op.Partition = entry.Partition
	e.pending = append(e.pending, op)
}

func (e *Engine) PartitionCreated(p *memory.Partition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Tick(e.cfg.NodeID)

	op := newSyncOperation(OpPartitionCreate, e.cfg.NodeID, e.clock)
	op.Partition = p.ID
	op.PartitionRecord = p
	e.pending = append(e.pending, op)
}

func (e *Engine) PartitionDeleted(p *memory.Partition) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.clock.Tick(e.cfg.NodeID)

	op := newSyncOperation(OpPartitionDelete, e.cfg.NodeID, e.clock)
	op.Partition = p.ID
	e.pending = append(e.pending, op)
}

// ObserveRead and ObserveWrite feed the latency windows from the layer that
// times Store API calls.
func (e *Engine) ObserveRead(d time.Duration)  { e.readLat.Observe(d) }
func (e *Engine) ObserveWrite(d time.Duration) { e.writeLat.Observe(d) }

func (e *Engine) run() {
	defer e.wg.Done()

	syncTicker := time.NewTicker(e.cfg.SyncInterval)
	defer syncTicker.Stop()
	hbTicker := time.NewTicker(e.cfg.HeartbeatInterval)
	defer hbTicker.Stop()

	for {
		select {
		case <-syncTicker.C:
			e.cycle()
		case <-hbTicker.C:
			e.heartbeat()
		case <-e.loopCtx.Done():
			return
		}
	}
}

// cycle is one maintenance pass: refresh peers, drain the outbound queue,
// apply inbound operations, recompute statistics. A slow transport fails
// the cycle rather than hanging it.
func (e *Engine) cycle() {
	ctx, cancel := context.WithTimeout(e.loopCtx, e.cfg.SyncInterval*4)
	defer cancel()

	e.refreshPeers(ctx)
	e.drainPending(ctx)
	e.applyInbound(ctx)
	e.recomputeStats(ctx)
}

func (e *Engine) heartbeat() {
	ctx, cancel := context.WithTimeout(e.loopCtx, e.cfg.HeartbeatInterval)
	defer cancel()
	if err := e.transport.Heartbeat(ctx, e.self); err != nil {
		e.logger.Warn("Heartbeat failed", map[string]interface{}{
			"node_id": e.cfg.NodeID,
			"error":   err.Error(),
		})
	}
}

func (e *Engine) refreshPeers(ctx context.Context) {
	nodes, err := e.transport.Nodes(ctx)
	if err != nil {
		e.logger.Warn("Peer refresh failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	seen := make(map[string]struct{})
	for _, node := range nodes {
		if node.ID == e.cfg.NodeID {
			continue
		}
		seen[node.ID] = struct{}{}
		state, ok := e.peers[node.ID]
		if !ok {
			state = &peerState{}
			e.peers[node.ID] = state
		}
		state.node = node

		if node.Status == NodeOffline {
			// Liveness record lapsed: count it as a missed heartbeat.
			state.missed++
			if state.missed >= e.cfg.MaxMissedHeartbeats {
				node.Status = NodeOffline
			} else {
				node.Status = NodeSyncing
			}
			continue
		}
		state.missed = 0
	}

	// Peers that vanished from membership entirely left the cluster.
	for id := range e.peers {
		if _, ok := seen[id]; !ok {
			delete(e.peers, id)
		}
	}
}

// onlinePeers returns replication-eligible peer IDs. Caller holds the lock.
func (e *Engine) onlinePeers() []string {
	var out []string
	for id, state := range e.peers {
		if state.node != nil && state.node.Status == NodeOnline {
			out = append(out, id)
		}
	}
	return out
}

// pickTargets selects up to replicationFactor-1 online peers. Caller holds
// the lock.
func (e *Engine) pickTargets() []string {
	want := e.cfg.ReplicationFactor - 1
	if want <= 0 {
		return nil
	}
	online := e.onlinePeers()
	if len(online) > want {
		online = online[:want]
	}
	return online
}

// retryDelay schedules the next attempt for a failed operation using the
// exponential backoff curve, without per-op stateful backoff objects.
func retryDelay(attempts int) time.Duration {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 30 * time.Second
	bo.RandomizationFactor = 0
	var d time.Duration
	for i := 0; i < attempts; i++ {
		d = bo.NextBackOff()
	}
	return d
}

func (e *Engine) drainPending(ctx context.Context) {
	now := time.Now()

	e.mu.Lock()
	var due []*SyncOperation
	for _, op := range e.pending {
		if op.NextAttempt.IsZero() || !op.NextAttempt.After(now) {
			due = append(due, op)
		}
	}
	e.mu.Unlock()

	for _, op := range due {
		op.Status = OpInProgress

		e.mu.Lock()
		if len(op.Targets) == 0 {
			op.Targets = e.pickTargets()
		}
		e.mu.Unlock()

		if err := e.deliver(ctx, op); err != nil {
			op.Status = OpFailed
			op.Attempts++
			op.NextAttempt = time.Now().Add(retryDelay(op.Attempts))
			e.mu.Lock()
			e.failedOps++
			e.mu.Unlock()
			e.logger.Warn("Sync operation delivery failed, will retry", map[string]interface{}{
				"op_id":    op.ID,
				"op_type":  string(op.Type),
				"attempts": op.Attempts,
				"error":    err.Error(),
			})
			continue
		}

		op.Status = OpCompleted
		e.syncLat.Observe(time.Since(op.Timestamp))
		e.mu.Lock()
		e.completedOps++
		if op.Entry != nil {
			e.acks[op.Entry.ID] = len(op.Targets)
		}
		e.removePending(op.ID)
		e.mu.Unlock()
	}

	// Completed-with-no-target ops also leave the queue.
	e.mu.Lock()
	var remaining []*SyncOperation
	for _, op := range e.pending {
		if op.Status != OpCompleted {
			remaining = append(remaining, op)
		}
	}
	e.pending = remaining
	e.mu.Unlock()
}

// removePending drops an op by ID. Caller holds the lock.
func (e *Engine) removePending(id string) {
	for i, op := range e.pending {
		if op.ID == id {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			return
		}
	}
}

// deliver pushes the operation to every target and refreshes this node's
// entry mirror so peers can serve strong reads.
func (e *Engine) deliver(ctx context.Context, op *SyncOperation) error {
	switch op.Type {
	case OpCreate, OpUpdate, OpBatch:
		if op.Entry != nil {
			if err := e.transport.MirrorEntry(ctx, e.cfg.NodeID, op.Entry); err != nil {
				return err
			}
		}
		for _, entry := range op.Entries {
			if err := e.transport.MirrorEntry(ctx, e.cfg.NodeID, entry); err != nil {
				return err
			}
		}
	case OpDelete:
		if err := e.transport.DropMirror(ctx, e.cfg.NodeID, op.Key, op.Namespace); err != nil {
			return err
		}
	}

	for _, target := range op.Targets {
		if err := e.transport.PushOp(ctx, target, op); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) applyInbound(ctx context.Context) {
	ops, err := e.transport.PopOps(ctx, e.cfg.NodeID, e.cfg.MaxBatch)
	if err != nil {
		e.logger.Warn("Inbound drain failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	for _, op := range ops {
		if err := e.applyRemoteOp(ctx, op); err != nil {
			e.logger.Warn("Failed to apply remote operation", map[string]interface{}{
				"op_id":   op.ID,
				"op_type": string(op.Type),
				"origin":  op.Origin,
				"error":   err.Error(),
			})
		}
	}
}

func (e *Engine) applyRemoteOp(ctx context.Context, op *SyncOperation) error {
	defer func() {
		e.mu.Lock()
		e.clock.Merge(op.Clock)
		e.mu.Unlock()
	}()

	switch op.Type {
	case OpCreate, OpUpdate:
		return e.applyRemoteEntry(ctx, op, op.Entry)
	case OpBatch:
		for _, entry := range op.Entries {
			if err := e.applyRemoteEntry(ctx, op, entry); err != nil {
				return err
			}
		}
		return nil
	case OpDelete:
		return e.manager.RemoveReplicated(ctx, op.Key, op.Namespace)
	case OpPartitionCreate:
		if op.PartitionRecord != nil {
			e.manager.RegisterPartition(op.PartitionRecord)
		}
		return nil
	case OpPartitionDelete:
		err := e.manager.DeletePartition(ctx, op.Partition)
		if errors.Is(err, memory.ErrPartitionNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// applyRemoteEntry reconciles one incoming entry against local state using
// the vector clock; concurrent writes go through the conflict resolver.
func (e *Engine) applyRemoteEntry(ctx context.Context, op *SyncOperation, incoming *memory.Entry) error {
	if incoming == nil {
		return nil
	}
	local, err := e.manager.Backend().RetrieveByKey(ctx, incoming.Key, incoming.Namespace)
	if err != nil && !errors.Is(err, memory.ErrNotFound) {
		return err
	}
	if local == nil {
		return e.manager.ApplyReplicated(ctx, incoming)
	}

	e.mu.Lock()
	relation := e.clock.Compare(op.Clock)
	e.mu.Unlock()

	var winner *memory.Entry
	switch relation {
	case Before:
		// Remote is causally ahead of everything we have seen.
		winner = incoming
	case After, Equal:
		winner = local
	default:
		winner = e.resolver.Resolve(local, incoming)
	}
	if winner == local {
		return nil
	}
	return e.manager.ApplyReplicated(ctx, winner)
}

// ReadStrong retrieves (key, namespace) with strong consistency: the local
// record and every reachable replica's mirror are merged before returning.
// The winning record is applied locally when it differs.
func (e *Engine) ReadStrong(ctx context.Context, key, namespace string) (*memory.Entry, error) {
	start := time.Now()
	defer func() { e.readLat.Observe(time.Since(start)) }()

	local, err := e.manager.RetrieveEntry(ctx, key, namespace)
	if err != nil {
		return nil, err
	}
	winner := local

	e.mu.Lock()
	peers := e.onlinePeers()
	e.mu.Unlock()

	for _, peer := range peers {
		remote, err := e.transport.FetchEntry(ctx, peer, key, namespace)
		if err != nil {
			// Unreachable replica: strong read continues with the rest.
			e.logger.Debug("Replica read failed", map[string]interface{}{
				"peer":  peer,
				"key":   key,
				"error": err.Error(),
			})
			continue
		}
		if remote == nil || remote.Expired(time.Now()) {
			continue
		}
		if winner == nil {
			winner = remote
			continue
		}
		winner = e.resolver.Resolve(winner, remote)
	}

	if winner != nil && (local == nil || winner.ID != local.ID || winner.Version != local.Version) {
		if err := e.manager.ApplyReplicated(ctx, winner); err != nil {
			return nil, err
		}
	}
	return winner, nil
}

// Nodes returns the engine's current view of the cluster, self included.
func (e *Engine) Nodes() []*Node {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := []*Node{cloneNode(e.self)}
	for _, state := range e.peers {
		if state.node != nil {
			out = append(out, cloneNode(state.node))
		}
	}
	return out
}

func cloneNode(n *Node) *Node {
	c := *n
	c.Partitions = append([]string(nil), n.Partitions...)
	return &c
}

// Clock returns a copy of the node's vector clock.
func (e *Engine) Clock() VectorClock {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clock.Clone()
}

// Stats returns the most recently computed replication statistics.
func (e *Engine) Stats() ReplicationStats {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stats
}

func (e *Engine) recomputeStats(ctx context.Context) {
	entries, err := e.manager.Backend().AllEntries(ctx)
	if err != nil {
		e.logger.Warn("Stats recompute failed", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	want := e.cfg.ReplicationFactor - 1
	replicated := 0
	for _, entry := range entries {
		if want <= 0 || e.acks[entry.ID] >= want {
			replicated++
		}
	}
	health := 1.0
	if len(entries) > 0 {
		health = float64(replicated) / float64(len(entries))
	}

	online, offline := 0, 0
	for _, state := range e.peers {
		if state.node == nil {
			continue
		}
		if state.node.Status == NodeOnline {
			online++
		} else {
			offline++
		}
	}

	e.stats = ReplicationStats{
		NodeID:            e.cfg.NodeID,
		TotalEntries:      len(entries),
		ReplicatedEntries: replicated,
		ReplicationHealth: health,
		OnlineNodes:       online + 1, // self
		OfflineNodes:      offline,
		PendingOps:        len(e.pending),
		CompletedOps:      e.completedOps,
		FailedOps:         e.failedOps,
		Read:              e.readLat.snapshot(),
		Write:             e.writeLat.snapshot(),
		Sync:              e.syncLat.snapshot(),
	}
}
