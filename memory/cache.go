package memory

import (
	"container/list"
	"sync"
	"time"
)

// CacheStats is a snapshot of cache counters.
type CacheStats struct {
	Entries   int
	Bytes     int64
	MaxBytes  int64
	Hits      int64
	Misses    int64
	Evictions int64
	Dirty     int
}

type cacheItem struct {
	key     string // composite namespace\x00key
	entry   *Entry
	size    int64
	dirty   bool
	lastUse time.Time
}

// Cache is a bounded LRU over recently used entries with write-back dirty
// tracking. Eviction prefers clean entries oldest-first; dirty entries are
// only evicted when no clean candidate remains. Cache never returns errors:
// capacity pressure is absorbed by eviction.
type Cache struct {
	mu         sync.Mutex
	maxBytes   int64 // 0 disables the byte bound
	maxEntries int   // 0 disables the count bound
	bytes      int64
	order      *list.List // front = most recently used
	items      map[string]*list.Element
	clock      Clock

	hits      int64
	misses    int64
	evictions int64
}

// NewCache creates a cache with the given bounds. Both bounds zero means the
// cache is effectively unbounded, which is only sensible in tests.
func NewCache(maxBytes int64, maxEntries int) *Cache {
	return &Cache{
		maxBytes:   maxBytes,
		maxEntries: maxEntries,
		order:      list.New(),
		items:      make(map[string]*list.Element),
		clock:      SystemClock{},
	}
}

func cacheKey(key, namespace string) string {
	return namespace + "\x00" + key
}

// Get returns a copy of the cached entry and records the access.
func (c *Cache) Get(key, namespace string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[cacheKey(key, namespace)]
	if !ok {
		c.misses++
		return nil, false
	}
	item := el.Value.(*cacheItem)
	item.lastUse = c.clock.Now()
	c.order.MoveToFront(el)
	c.hits++
	return item.entry.Clone(), true
}

// Set inserts or replaces an entry, evicting first if the insert would
// exceed a configured bound. The dirty flag marks the entry as not yet
// flushed to the backend.
func (c *Cache) Set(entry *Entry, dirty bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stored := entry.Clone()
	size := stored.EstimateSize()
	ck := cacheKey(stored.Key, stored.Namespace)

	if el, ok := c.items[ck]; ok {
		item := el.Value.(*cacheItem)
		c.bytes += size - item.size
		item.entry = stored
		item.size = size
		item.dirty = item.dirty || dirty
		item.lastUse = c.clock.Now()
		c.order.MoveToFront(el)
		c.evictUntilFit()
		return
	}

	// Make room before inserting.
	c.bytes += size
	item := &cacheItem{key: ck, entry: stored, size: size, dirty: dirty, lastUse: c.clock.Now()}
	c.items[ck] = c.order.PushFront(item)
	c.evictUntilFit()
}

// Remove drops an entry from the cache regardless of dirty state.
func (c *Cache) Remove(key, namespace string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[cacheKey(key, namespace)]; ok {
		c.removeElement(el)
	}
}

// DirtyEntries returns copies of all unflushed entries so a caller can
// batch-write them to the backend.
func (c *Cache) DirtyEntries() []*Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*Entry
	for _, el := range c.items {
		item := el.Value.(*cacheItem)
		if item.dirty {
			out = append(out, item.entry.Clone())
		}
	}
	return out
}

// MarkClean clears the dirty flag for the given entry IDs after a flush.
func (c *Cache) MarkClean(ids []string) {
	idSet := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, el := range c.items {
		item := el.Value.(*cacheItem)
		if _, ok := idSet[item.entry.ID]; ok {
			item.dirty = false
		}
	}
}

// Clear empties the cache without flushing.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.order.Init()
	c.items = make(map[string]*list.Element)
	c.bytes = 0
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	dirty := 0
	for _, el := range c.items {
		if el.Value.(*cacheItem).dirty {
			dirty++
		}
	}
	return CacheStats{
		Entries:   len(c.items),
		Bytes:     c.bytes,
		MaxBytes:  c.maxBytes,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Dirty:     dirty,
	}
}

func (c *Cache) overBudget() bool {
	if c.maxBytes > 0 && c.bytes > c.maxBytes {
		return true
	}
	if c.maxEntries > 0 && len(c.items) > c.maxEntries {
		return true
	}
	return false
}

// evictUntilFit removes entries oldest-lastUse-first until within budget,
// passing over dirty entries while any clean candidate remains. Caller holds
// the lock.
func (c *Cache) evictUntilFit() {
	for c.overBudget() {
		if victim := c.oldest(false); victim != nil {
			c.removeElement(victim)
			c.evictions++
			continue
		}
		// Only dirty entries remain; evict the oldest anyway rather than
		// exceed the bound. The flush loop keeps this path rare.
		victim := c.oldest(true)
		if victim == nil {
			return
		}
		c.removeElement(victim)
		c.evictions++
	}
}

// oldest returns the least recently used element, optionally including dirty
// entries. Caller holds the lock.
func (c *Cache) oldest(includeDirty bool) *list.Element {
	for el := c.order.Back(); el != nil; el = el.Prev() {
		if includeDirty || !el.Value.(*cacheItem).dirty {
			return el
		}
	}
	return nil
}

func (c *Cache) removeElement(el *list.Element) {
	item := el.Value.(*cacheItem)
	c.order.Remove(el)
	delete(c.items, item.key)
	c.bytes -= item.size
}
