package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// evictFraction is the share of a full partition cleared by a capacity
// eviction pass, oldest entries (by updatedAt) first.
const evictFraction = 0.10

// partitionRegistry owns the partition table: capacity accounting, the
// domain-type routing map, and capacity eviction. All methods are safe for
// concurrent use.
type partitionRegistry struct {
	mu     sync.RWMutex
	byID   map[string]*Partition
	byType map[string]string // domain type -> partition id
	order  []string          // creation order, for the selection fallback
	logger Logger
}

func newPartitionRegistry(logger Logger) *partitionRegistry {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &partitionRegistry{
		byID:   make(map[string]*Partition),
		byType: make(map[string]string),
		logger: logger,
	}
}

// Create allocates and registers a partition. The first partition created
// for a given type becomes the routing target for that type.
func (r *partitionRegistry) Create(name, ptype string, opts PartitionOptions) (*Partition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.byID {
		if p.Name == name {
			return nil, OpError("partitions.Create", "partition", name, ErrPartitionExists)
		}
	}

	p := &Partition{
		ID:         uuid.NewString(),
		Name:       name,
		Type:       ptype,
		MaxSize:    opts.MaxSize,
		DefaultTTL: opts.DefaultTTL,
		ReadOnly:   opts.ReadOnly,
		Shared:     opts.Shared,
		Indexed:    opts.Indexed,
		Compressed: opts.Compressed,
		CreatedAt:  time.Now(),
	}
	r.byID[p.ID] = p
	r.order = append(r.order, p.ID)
	if _, taken := r.byType[ptype]; !taken {
		r.byType[ptype] = p.ID
	}

	r.logger.Info("Partition created", map[string]interface{}{
		"partition_id": p.ID,
		"name":         name,
		"type":         ptype,
		"max_size":     opts.MaxSize,
	})
	return p.clone(), nil
}

// Register installs an existing partition record, used when replaying a
// replicated creation or an import.
func (r *partitionRegistry) Register(p *Partition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byID[p.ID]; ok {
		return
	}
	r.byID[p.ID] = p.clone()
	r.order = append(r.order, p.ID)
	if _, taken := r.byType[p.Type]; !taken {
		r.byType[p.Type] = p.ID
	}
}

// Delete removes a partition from the registry, returning the removed record
// so the caller can cascade entry deletion.
func (r *partitionRegistry) Delete(id string) (*Partition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.byID[id]
	if !ok {
		return nil, OpError("partitions.Delete", "partition", id, ErrPartitionNotFound)
	}
	delete(r.byID, id)
	if r.byType[p.Type] == id {
		delete(r.byType, p.Type)
		// Another partition of the same type takes over routing.
		for _, candidate := range r.order {
			if other, ok := r.byID[candidate]; ok && other.Type == p.Type {
				r.byType[p.Type] = candidate
				break
			}
		}
	}
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return p.clone(), nil
}

// Get returns a copy of the partition, or nil.
func (r *partitionRegistry) Get(id string) *Partition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.byID[id]; ok {
		return p.clone()
	}
	return nil
}

// Select maps a domain type to a partition. When no partition is registered
// for the type it falls back to the first available partition; callers
// relying on routing should create their partitions explicitly.
func (r *partitionRegistry) Select(ptype string) *Partition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if id, ok := r.byType[ptype]; ok {
		return r.byID[id].clone()
	}
	if len(r.order) > 0 {
		return r.byID[r.order[0]].clone()
	}
	return nil
}

// List returns copies of every partition in creation order.
func (r *partitionRegistry) List() []*Partition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Partition, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id].clone())
	}
	return out
}

// account adjusts a partition's usage counters after a write or delete.
func (r *partitionRegistry) account(id string, deltaBytes int64, deltaEntries int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.byID[id]; ok {
		p.UsedSize += deltaBytes
		p.EntryCount += deltaEntries
		if p.UsedSize < 0 {
			p.UsedSize = 0
		}
		if p.EntryCount < 0 {
			p.EntryCount = 0
		}
	}
}

func (p *Partition) clone() *Partition {
	c := *p
	return &c
}

// ensureCapacity makes room in the partition for an incoming write of the
// given size. When the write would exceed MaxSize it evicts the oldest 10%
// of the partition's entries by updatedAt from the backend before the write
// proceeds; the entry being written (excludeID) is never a victim. Still
// over budget afterwards means the write cannot fit. The evicted entries
// are returned so the caller can purge them from its cache and propagate
// the removals.
func (r *partitionRegistry) ensureCapacity(ctx context.Context, backend Backend, partitionID string, incoming int64, excludeID string) ([]*Entry, error) {
	p := r.Get(partitionID)
	if p == nil || p.MaxSize <= 0 {
		return nil, nil
	}
	if p.UsedSize+incoming <= p.MaxSize {
		return nil, nil
	}

	entries, err := backend.Query(ctx, QueryFilter{Partition: partitionID, SortBy: "updatedAt", SortOrder: SortAsc})
	if err != nil {
		return nil, OpError("partitions.ensureCapacity", "backend", partitionID, err)
	}
	candidates := entries[:0:0]
	for _, e := range entries {
		if e.ID != excludeID {
			candidates = append(candidates, e)
		}
	}
	victims := int(float64(len(candidates))*evictFraction + 0.5)
	if victims < 1 {
		victims = 1
	}
	if victims > len(candidates) {
		victims = len(candidates)
	}

	var freed int64
	for _, victim := range candidates[:victims] {
		if err := backend.Delete(ctx, victim.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return nil, OpError("partitions.ensureCapacity", "backend", victim.ID, err)
		}
		freed += victim.Size
		r.account(partitionID, -victim.Size, -1)
	}

	r.logger.Info("Partition capacity eviction", map[string]interface{}{
		"partition_id":  partitionID,
		"evicted":       victims,
		"freed_bytes":   freed,
		"incoming_size": incoming,
	})

	p = r.Get(partitionID)
	if p != nil && p.UsedSize+incoming > p.MaxSize {
		return candidates[:victims], OpError("partitions.ensureCapacity", "partition", partitionID, ErrCapacityExceeded)
	}
	return candidates[:victims], nil
}

// oldestFirst sorts entries ascending by updatedAt. Shared helper for
// eviction-order sensitive callers and tests.
func oldestFirst(entries []*Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt.Before(entries[j].UpdatedAt)
	})
}
