package memory

import (
	"context"
	"errors"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Replicator receives local mutations for asynchronous propagation to peer
// nodes. The cluster package provides the implementation; a Manager without
// a replicator runs standalone.
type Replicator interface {
	EntryStored(entry *Entry)
	EntryDeleted(entry *Entry)
	PartitionCreated(p *Partition)
	PartitionDeleted(p *Partition)
}

// Manager implements the Store API over the cache, partition registry, and
// the active backend. All state is instance-owned: multiple managers can
// coexist in one process, each with its own Initialize/Shutdown lifecycle.
type Manager struct {
	cfg     *Config
	logger  Logger
	cache   *Cache
	parts   *partitionRegistry
	codec   Codec
	metrics *metrics

	mu             sync.RWMutex
	backend        Backend
	fallbackActive bool
	initialized    bool
	replicator     Replicator

	// defaultPartition receives entries that name no partition and no type.
	defaultPartition string

	loopCtx    context.Context
	loopCancel context.CancelFunc
	wg         sync.WaitGroup
}

// NewManager creates a manager from cfg. Call Initialize before use.
func NewManager(cfg *Config) *Manager {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = NewLogrusLogger(cfg.LogLevel, os.Stderr).WithComponent("memory")
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		cache:  NewCache(cfg.Cache.MaxBytes, cfg.Cache.MaxEntries),
		parts:  newPartitionRegistry(logger),
		codec:  CodecByName(cfg.Codec),
	}
}

// Logger exposes the manager's logger so layered packages share it.
func (m *Manager) Logger() Logger { return m.logger }

// Codec returns the configured default codec.
func (m *Manager) Codec() Codec { return m.codec }

// SetReplicator attaches the distributed sync engine. Must be called before
// Initialize or between operations; typically wired once at startup.
func (m *Manager) SetReplicator(r Replicator) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replicator = r
}

// Initialize selects and opens the backend, rebuilds partition accounting,
// and starts the flush and GC loops. The durable backend is attempted first;
// on any initialization failure the manager switches to the in-memory
// fallback exactly once, logs a single warning, and never retries the
// durable path for the life of the process.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initialized {
		return ErrAlreadyInitialized
	}

	m.metrics = newMetrics(m.cfg.MetricsRegisterer)

	if m.cfg.InMemoryOnly {
		m.backend = NewMemoryBackend()
	} else {
		durable := NewBoltBackend(m.cfg.Directory, m.logger)
		if err := durable.Initialize(ctx); err != nil {
			m.logger.Warn("Durable backend unavailable, falling back to in-memory store", map[string]interface{}{
				"directory": m.cfg.Directory,
				"error":     err.Error(),
			})
			m.backend = NewMemoryBackend()
			m.fallbackActive = true
		} else {
			m.backend = durable
		}
	}

	if _, err := m.parts.Create("default", "generic", PartitionOptions{}); err != nil &&
		!errors.Is(err, ErrPartitionExists) {
		return err
	}
	m.defaultPartition = m.parts.Select("generic").ID

	if err := m.rebuildAccounting(ctx); err != nil {
		return err
	}

	m.loopCtx, m.loopCancel = context.WithCancel(context.Background())
	if m.cfg.Cache.FlushInterval > 0 {
		m.wg.Add(1)
		go m.flushLoop()
	}
	if m.cfg.GC.Interval > 0 {
		m.wg.Add(1)
		go m.gcLoop()
	}

	m.initialized = true
	m.logger.Info("Memory manager initialized", map[string]interface{}{
		"fallback_active": m.fallbackActive,
		"namespace":       m.cfg.Namespace,
		"codec":           m.codec.Name(),
	})
	return nil
}

// rebuildAccounting restores partition usage counters from persisted entries
// after a restart. Entries referencing unknown partitions are re-homed to
// the default partition's accounting.
func (m *Manager) rebuildAccounting(ctx context.Context) error {
	entries, err := m.backend.AllEntries(ctx)
	if err != nil {
		return OpError("manager.Initialize", "backend", "", err)
	}
	for _, e := range entries {
		pid := e.Partition
		if m.parts.Get(pid) == nil {
			pid = m.defaultPartition
		}
		m.parts.account(pid, e.Size, 1)
	}
	return nil
}

// Shutdown flushes dirty cache entries, stops background loops, and closes
// the backend. The manager cannot be reused afterwards.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if !m.initialized {
		m.mu.Unlock()
		return ErrNotInitialized
	}
	m.initialized = false
	cancel := m.loopCancel
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()

	m.flushDirty(ctx)
	err := m.backend.Close()
	m.logger.Info("Memory manager shut down", nil)
	return err
}

// FallbackActive reports whether the manager is running on the in-memory
// fallback after a durable initialization failure.
func (m *Manager) FallbackActive() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fallbackActive
}

// Backend returns the active backend. Intended for the cluster package and
// tests; application code should stay on the Store API.
func (m *Manager) Backend() Backend {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.backend
}

func (m *Manager) ready() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.initialized {
		return ErrNotInitialized
	}
	return nil
}

func (m *Manager) namespaceOr(ns string) string {
	if ns == "" {
		return m.cfg.Namespace
	}
	return ns
}

// resolvePartition picks the target partition for a write: an explicit
// partition wins, then the type routing map, then the default partition.
func (m *Manager) resolvePartition(opts *StoreOptions) (*Partition, error) {
	if opts != nil && opts.Partition != "" {
		if p := m.parts.Get(opts.Partition); p != nil {
			return p, nil
		}
		return nil, OpError("manager.Store", "partition", opts.Partition, ErrPartitionNotFound)
	}
	if opts != nil && opts.Type != "" {
		if p := m.parts.Select(opts.Type); p != nil {
			return p, nil
		}
	}
	return m.parts.Get(m.defaultPartition), nil
}

// Store persists value under (key, namespace). Storing at an existing pair
// updates in place and increments the entry version; otherwise a new entry
// is created. The write is durable locally before Store returns; cluster
// propagation is queued asynchronously.
func (m *Manager) Store(ctx context.Context, key string, value []byte, opts *StoreOptions) (*StoreResult, error) {
	start := time.Now()
	result, err := m.store(ctx, key, value, opts)
	m.metrics.observe("store", start, err)
	return result, err
}

func (m *Manager) store(ctx context.Context, key string, value []byte, opts *StoreOptions) (*StoreResult, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	if key == "" {
		return nil, OpError("manager.Store", "entry", "", ErrInvalidEntry)
	}
	if opts == nil {
		opts = &StoreOptions{}
	}
	if opts.AccessLevel != "" && !opts.AccessLevel.Valid() {
		return nil, OpError("manager.Store", "entry", key, ErrInvalidEntry)
	}

	ns := m.namespaceOr(opts.Namespace)
	partition, err := m.resolvePartition(opts)
	if err != nil {
		return nil, err
	}
	if partition.ReadOnly {
		return nil, OpError("manager.Store", "partition", partition.ID, ErrReadOnlyPartition)
	}

	ttl := opts.TTL
	if ttl == 0 {
		if partition.DefaultTTL > 0 {
			ttl = partition.DefaultTTL
		} else {
			ttl = m.cfg.DefaultTTL
		}
	}

	payload := value
	if partition.Compressed {
		encoded, err := GzipCodec{Inner: rawCodec{}}.Encode(value)
		if err != nil {
			return nil, OpError("manager.Store", "codec", key, err)
		}
		payload = encoded
	}

	now := time.Now()
	existing, err := m.backend.RetrieveByKey(ctx, key, ns)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, OpError("manager.Store", "backend", key, err)
	}

	var entry *Entry
	var prevSize int64
	created := existing == nil || existing.Expired(now)
	if created {
		entry = NewEntry(key, ns, payload)
		if existing != nil {
			// Expired record at the same pair: reuse its identity so the
			// uniqueness index stays single-valued.
			entry.ID = existing.ID
			prevSize = existing.Size
		}
	} else {
		entry = existing
		prevSize = existing.Size
		entry.Value = payload
		entry.Bump(now)
	}

	entry.Partition = partition.ID
	entry.Compressed = partition.Compressed
	if opts.Type != "" {
		entry.Type = opts.Type
	}
	if opts.Tags != nil {
		entry.Tags = append([]string(nil), opts.Tags...)
	}
	if opts.Owner != "" {
		entry.Owner = opts.Owner
	}
	if opts.AccessLevel != "" {
		entry.AccessLevel = opts.AccessLevel
	}
	if opts.Metadata != nil {
		entry.Metadata = opts.Metadata
	}
	entry.UpdatedAt = now
	entry.SetTTL(ttl)
	entry.Size = entry.EstimateSize()

	victims, err := m.parts.ensureCapacity(ctx, m.backend, partition.ID, entry.Size-prevSize, entry.ID)
	m.purgeEvicted(victims, true)
	if err != nil {
		return nil, err
	}

	if err := m.backend.Store(ctx, entry); err != nil {
		return nil, OpError("manager.Store", "backend", key, err)
	}
	if existing == nil {
		m.parts.account(partition.ID, entry.Size, 1)
	} else {
		m.parts.account(partition.ID, entry.Size-prevSize, 0)
	}
	m.cache.Set(entry, false)
	m.replicate(func(r Replicator) { r.EntryStored(entry.Clone()) })

	m.logger.Debug("Entry stored", map[string]interface{}{
		"key":       key,
		"namespace": ns,
		"partition": partition.ID,
		"version":   entry.Version,
		"size":      entry.Size,
	})
	return &StoreResult{ID: entry.ID, Size: entry.Size, Version: entry.Version, Created: created}, nil
}

// Retrieve returns the value stored at (key, namespace), or nil when absent.
// Absence is never an error: missing and expired entries both return
// (nil, nil). Expired entries are scheduled for asynchronous deletion.
func (m *Manager) Retrieve(ctx context.Context, key, namespace string) ([]byte, error) {
	entry, err := m.RetrieveEntry(ctx, key, namespace)
	if err != nil || entry == nil {
		return nil, err
	}
	value := entry.Value
	if entry.Compressed {
		var raw []byte
		if err := (GzipCodec{Inner: rawCodec{}}).Decode(entry.Value, &raw); err != nil {
			return nil, OpError("manager.Retrieve", "codec", key, err)
		}
		value = raw
	}
	return value, nil
}

// RetrieveEntry returns the full entry record at (key, namespace), or nil.
// The stored payload is returned as-is, compressed partitions included.
func (m *Manager) RetrieveEntry(ctx context.Context, key, namespace string) (*Entry, error) {
	start := time.Now()
	entry, err := m.retrieveEntry(ctx, key, namespace)
	m.metrics.observe("retrieve", start, err)
	return entry, err
}

func (m *Manager) retrieveEntry(ctx context.Context, key, namespace string) (*Entry, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	ns := m.namespaceOr(namespace)
	now := time.Now()

	if entry, ok := m.cache.Get(key, ns); ok {
		m.metrics.cacheEvent("hit")
		if entry.Expired(now) {
			m.expireAsync(entry)
			return nil, nil
		}
		entry.Touch(now)
		m.cache.Set(entry, true) // access stats flushed by the write-back loop
		return entry, nil
	}
	m.metrics.cacheEvent("miss")

	entry, err := m.backend.RetrieveByKey(ctx, key, ns)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, OpError("manager.Retrieve", "backend", key, err)
	}
	if entry.Expired(now) {
		m.expireAsync(entry)
		return nil, nil
	}
	entry.Touch(now)
	m.cache.Set(entry, true)
	return entry, nil
}

// Update replaces the value at (key, namespace) under optimistic locking.
// expectedVersion zero skips the version check; a mismatch returns
// ErrVersionConflict. Updating a missing or expired entry returns
// ErrNotFound.
func (m *Manager) Update(ctx context.Context, key, namespace string, value []byte, expectedVersion int64) (*StoreResult, error) {
	start := time.Now()
	result, err := m.update(ctx, key, namespace, value, expectedVersion)
	m.metrics.observe("update", start, err)
	return result, err
}

func (m *Manager) update(ctx context.Context, key, namespace string, value []byte, expectedVersion int64) (*StoreResult, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	ns := m.namespaceOr(namespace)
	now := time.Now()

	entry, err := m.backend.RetrieveByKey(ctx, key, ns)
	if errors.Is(err, ErrNotFound) {
		return nil, OpError("manager.Update", "entry", key, ErrNotFound)
	}
	if err != nil {
		return nil, OpError("manager.Update", "backend", key, err)
	}
	if entry.Expired(now) {
		m.expireAsync(entry)
		return nil, OpError("manager.Update", "entry", key, ErrNotFound)
	}
	if expectedVersion > 0 && entry.Version != expectedVersion {
		return nil, OpError("manager.Update", "entry", key, ErrVersionConflict)
	}

	payload := value
	if entry.Compressed {
		encoded, err := GzipCodec{Inner: rawCodec{}}.Encode(value)
		if err != nil {
			return nil, OpError("manager.Update", "codec", key, err)
		}
		payload = encoded
	}

	prevSize := entry.Size
	entry.Value = payload
	entry.Bump(now)

	victims, err := m.parts.ensureCapacity(ctx, m.backend, entry.Partition, entry.Size-prevSize, entry.ID)
	m.purgeEvicted(victims, true)
	if err != nil {
		return nil, err
	}
	if err := m.backend.Update(ctx, entry); err != nil {
		return nil, OpError("manager.Update", "backend", key, err)
	}
	m.parts.account(entry.Partition, entry.Size-prevSize, 0)
	m.cache.Set(entry, false)
	m.replicate(func(r Replicator) { r.EntryStored(entry.Clone()) })

	return &StoreResult{ID: entry.ID, Size: entry.Size, Version: entry.Version}, nil
}

// Delete removes the entry at (key, namespace). It reports whether an entry
// was present; deleting a missing entry is not an error.
func (m *Manager) Delete(ctx context.Context, key, namespace string) (bool, error) {
	start := time.Now()
	ok, err := m.delete(ctx, key, namespace)
	m.metrics.observe("delete", start, err)
	return ok, err
}

func (m *Manager) delete(ctx context.Context, key, namespace string) (bool, error) {
	if err := m.ready(); err != nil {
		return false, err
	}
	ns := m.namespaceOr(namespace)

	entry, err := m.backend.RetrieveByKey(ctx, key, ns)
	if errors.Is(err, ErrNotFound) {
		m.cache.Remove(key, ns)
		return false, nil
	}
	if err != nil {
		return false, OpError("manager.Delete", "backend", key, err)
	}

	if err := m.backend.Delete(ctx, entry.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return false, OpError("manager.Delete", "backend", key, err)
	}
	m.cache.Remove(key, ns)
	m.parts.account(entry.Partition, -entry.Size, -1)
	m.replicate(func(r Replicator) { r.EntryDeleted(entry.Clone()) })
	return true, nil
}

// List returns up to limit entries in the namespace, most recently updated
// first.
func (m *Manager) List(ctx context.Context, opts ListOptions) ([]*Entry, error) {
	start := time.Now()
	entries, err := m.Query(ctx, QueryFilter{
		Namespace: m.namespaceOr(opts.Namespace),
		SortBy:    "updatedAt",
		SortOrder: SortDesc,
		Limit:     opts.Limit,
	})
	m.metrics.observe("list", start, err)
	return entries, err
}

// Query runs a filtered, sorted, paginated query against the backend.
// Expired entries are excluded.
func (m *Manager) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	entries, err := m.backend.Query(ctx, filter)
	if err != nil {
		return nil, OpError("manager.Query", "backend", "", err)
	}
	return entries, nil
}

// searchHit pairs an entry with its relevance rank during Search.
type searchHit struct {
	entry *Entry
	rank  int
}

// Search returns entries whose key or value matches the pattern, ranked:
// exact key matches first, then key matches, then value matches, recency
// breaking ties.
func (m *Manager) Search(ctx context.Context, opts SearchOptions) ([]*Entry, error) {
	start := time.Now()
	entries, err := m.search(ctx, opts)
	m.metrics.observe("search", start, err)
	return entries, err
}

func (m *Manager) search(ctx context.Context, opts SearchOptions) ([]*Entry, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	candidates, err := m.backend.Query(ctx, QueryFilter{
		Namespace: m.namespaceOr(opts.Namespace),
		Tags:      opts.Tags,
	})
	if err != nil {
		return nil, OpError("manager.Search", "backend", "", err)
	}

	var hits []searchHit
	for _, e := range candidates {
		rank := 0
		switch {
		case strings.EqualFold(e.Key, opts.Pattern):
			rank = 3
		case matchPattern(opts.Pattern, e.Key):
			rank = 2
		case matchPattern(opts.Pattern, string(e.Value)):
			rank = 1
		default:
			continue
		}
		hits = append(hits, searchHit{entry: e, rank: rank})
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank > hits[j].rank
		}
		return hits[i].entry.UpdatedAt.After(hits[j].entry.UpdatedAt)
	})

	out := make([]*Entry, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.entry)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

// CreatePartition allocates a partition and, in cluster mode, propagates the
// creation to peers.
func (m *Manager) CreatePartition(name, ptype string, opts PartitionOptions) (*Partition, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	p, err := m.parts.Create(name, ptype, opts)
	if err != nil {
		return nil, err
	}
	m.replicate(func(r Replicator) { r.PartitionCreated(p.clone()) })
	return p, nil
}

// DeletePartition cascades deletion of every contained entry before removing
// the partition and propagating the deletion.
func (m *Manager) DeletePartition(ctx context.Context, id string) error {
	if err := m.ready(); err != nil {
		return err
	}
	if id == m.defaultPartition {
		return OpError("manager.DeletePartition", "partition", id, ErrInvalidConfiguration)
	}
	entries, err := m.backend.Query(ctx, QueryFilter{Partition: id})
	if err != nil {
		return OpError("manager.DeletePartition", "backend", id, err)
	}
	for _, e := range entries {
		if err := m.backend.Delete(ctx, e.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return OpError("manager.DeletePartition", "backend", e.ID, err)
		}
		m.cache.Remove(e.Key, e.Namespace)
	}
	p, err := m.parts.Delete(id)
	if err != nil {
		return err
	}
	m.replicate(func(r Replicator) { r.PartitionDeleted(p) })
	return nil
}

// SelectPartition maps a domain type to its routing partition, falling back
// to the first available partition when the type is unmapped.
func (m *Manager) SelectPartition(ptype string) *Partition {
	return m.parts.Select(ptype)
}

// Partitions lists all partitions in creation order.
func (m *Manager) Partitions() []*Partition {
	return m.parts.List()
}

// RegisterPartition installs a partition record received from a peer or an
// import without re-propagating it.
func (m *Manager) RegisterPartition(p *Partition) {
	m.parts.Register(p)
}

// ApplyReplicated stores an entry received from a peer without queuing
// further replication. Conflict resolution happens in the cluster package
// before this call.
func (m *Manager) ApplyReplicated(ctx context.Context, entry *Entry) error {
	if err := m.ready(); err != nil {
		return err
	}
	if m.parts.Get(entry.Partition) == nil {
		entry = entry.Clone()
		entry.Partition = m.defaultPartition
	}
	prev, err := m.backend.RetrieveByKey(ctx, entry.Key, entry.Namespace)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return OpError("manager.ApplyReplicated", "backend", entry.ID, err)
	}
	var prevSize int64
	keepID := entry.ID
	if prev != nil {
		prevSize = prev.Size
		keepID = prev.ID // the record being replaced, never a victim
	}
	victims, err := m.parts.ensureCapacity(ctx, m.backend, entry.Partition, entry.Size-prevSize, keepID)
	m.purgeEvicted(victims, false)
	if err != nil {
		return err
	}
	if err := m.backend.Store(ctx, entry); err != nil {
		return OpError("manager.ApplyReplicated", "backend", entry.ID, err)
	}
	if prev == nil {
		m.parts.account(entry.Partition, entry.Size, 1)
	} else {
		m.parts.account(entry.Partition, entry.Size-prev.Size, 0)
	}
	m.cache.Set(entry, false)
	return nil
}

// RemoveReplicated deletes an entry in response to a peer's delete without
// queuing further replication.
func (m *Manager) RemoveReplicated(ctx context.Context, key, namespace string) error {
	if err := m.ready(); err != nil {
		return err
	}
	entry, err := m.backend.RetrieveByKey(ctx, key, namespace)
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := m.backend.Delete(ctx, entry.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	m.cache.Remove(key, namespace)
	m.parts.account(entry.Partition, -entry.Size, -1)
	return nil
}

// Stats summarizes the store's current state.
type Stats struct {
	Entries        int           `json:"entries"`
	Namespaces     int           `json:"namespaces"`
	Partitions     []*Partition  `json:"partitions"`
	Cache          CacheStats    `json:"cache"`
	FallbackActive bool          `json:"fallbackActive"`
	BackendHealthy bool          `json:"backendHealthy"`
	TotalSize      int64         `json:"totalSize"`
}

// Stats computes a snapshot of store statistics.
func (m *Manager) Stats(ctx context.Context) (*Stats, error) {
	if err := m.ready(); err != nil {
		return nil, err
	}
	entries, err := m.backend.AllEntries(ctx)
	if err != nil {
		return nil, OpError("manager.Stats", "backend", "", err)
	}
	now := time.Now()
	namespaces := make(map[string]struct{})
	live := 0
	var total int64
	for _, e := range entries {
		if e.Expired(now) {
			continue
		}
		live++
		total += e.Size
		namespaces[e.Namespace] = struct{}{}
	}
	return &Stats{
		Entries:        live,
		Namespaces:     len(namespaces),
		Partitions:     m.parts.List(),
		Cache:          m.cache.Stats(),
		FallbackActive: m.FallbackActive(),
		BackendHealthy: m.backend.HealthCheck(ctx) == nil,
		TotalSize:      total,
	}, nil
}

// purgeEvicted clears capacity-eviction victims from the cache so evicted
// entries are absent on every read path, and, for locally originated
// evictions, propagates the removals so replicas converge.
func (m *Manager) purgeEvicted(victims []*Entry, propagate bool) {
	for _, v := range victims {
		m.cache.Remove(v.Key, v.Namespace)
		if propagate {
			entry := v
			m.replicate(func(r Replicator) { r.EntryDeleted(entry) })
		}
	}
}

func (m *Manager) replicate(fn func(Replicator)) {
	m.mu.RLock()
	r := m.replicator
	m.mu.RUnlock()
	if r != nil {
		fn(r)
	}
}

// rawCodec passes byte slices through the Codec interface unchanged so the
// gzip wrapper can compress opaque payloads.
type rawCodec struct{}

func (rawCodec) Name() string { return "raw" }

func (rawCodec) Encode(v interface{}) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, ErrInvalidEntry
	}
	return b, nil
}

func (rawCodec) Decode(data []byte, v interface{}) error {
	out, ok := v.(*[]byte)
	if !ok {
		return ErrInvalidEntry
	}
	*out = append([]byte(nil), data...)
	return nil
}
