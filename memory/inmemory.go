package memory

import (
	"context"
	"sync"
)

// MemoryBackend is the process-local fallback Backend. It satisfies the same
// contract as the durable store but loses all state on restart; Manager
// switches to it exactly once when the durable backend cannot initialize.
type MemoryBackend struct {
	mu     sync.RWMutex
	byID   map[string]*Entry
	byKey  map[string]string // namespace\x00key -> id
	closed bool
}

// NewMemoryBackend creates an empty in-memory backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		byID:  make(map[string]*Entry),
		byKey: make(map[string]string),
	}
}

func (m *MemoryBackend) Initialize(ctx context.Context) error { return nil }

func (m *MemoryBackend) Store(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.ID == "" {
		return ErrInvalidEntry
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}

	ck := cacheKey(entry.Key, entry.Namespace)
	// Replacing under the same (key, namespace) drops the previous record.
	if prev, ok := m.byKey[ck]; ok && prev != entry.ID {
		delete(m.byID, prev)
	}
	m.byID[entry.ID] = entry.Clone()
	m.byKey[ck] = entry.ID
	return nil
}

func (m *MemoryBackend) Retrieve(ctx context.Context, id string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrBackendClosed
	}
	entry, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return entry.Clone(), nil
}

func (m *MemoryBackend) RetrieveByKey(ctx context.Context, key, namespace string) (*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrBackendClosed
	}
	id, ok := m.byKey[cacheKey(key, namespace)]
	if !ok {
		return nil, ErrNotFound
	}
	return m.byID[id].Clone(), nil
}

func (m *MemoryBackend) Update(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.ID == "" {
		return ErrInvalidEntry
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}
	if _, ok := m.byID[entry.ID]; !ok {
		return ErrNotFound
	}
	m.byID[entry.ID] = entry.Clone()
	m.byKey[cacheKey(entry.Key, entry.Namespace)] = entry.ID
	return nil
}

func (m *MemoryBackend) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrBackendClosed
	}
	entry, ok := m.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.byID, id)
	delete(m.byKey, cacheKey(entry.Key, entry.Namespace))
	return nil
}

func (m *MemoryBackend) Query(ctx context.Context, filter QueryFilter) ([]*Entry, error) {
	entries, err := m.AllEntries(ctx)
	if err != nil {
		return nil, err
	}
	return applyFilter(entries, filter), nil
}

func (m *MemoryBackend) AllEntries(ctx context.Context) ([]*Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrBackendClosed
	}
	out := make([]*Entry, 0, len(m.byID))
	for _, entry := range m.byID {
		out = append(out, entry.Clone())
	}
	return out, nil
}

func (m *MemoryBackend) HealthCheck(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return ErrBackendClosed
	}
	return nil
}

func (m *MemoryBackend) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}
