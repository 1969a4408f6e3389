package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cacheEntry(key string, size int64) *Entry {
	e := NewEntry(key, "test", []byte("v"))
	e.Size = size
	return e
}

func TestCacheGetSet(t *testing.T) {
	c := NewCache(1<<20, 0)

	e := cacheEntry("k", 100)
	c.Set(e, false)

	got, ok := c.Get("k", "test")
	require.True(t, ok)
	assert.Equal(t, "k", got.Key)

	// Get returns a copy: mutating it must not leak into the cache.
	got.Value = []byte("mutated")
	again, ok := c.Get("k", "test")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), again.Value)

	_, ok = c.Get("missing", "test")
	assert.False(t, ok)

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestCacheEvictsOldestClean(t *testing.T) {
	c := NewCache(350, 0)

	c.Set(cacheEntry("a", 100), false)
	c.Set(cacheEntry("b", 100), false)
	c.Set(cacheEntry("c", 100), false)

	// Touch "a" so "b" becomes least recently used.
	_, ok := c.Get("a", "test")
	require.True(t, ok)

	c.Set(cacheEntry("d", 100), false)

	_, ok = c.Get("b", "test")
	assert.False(t, ok, "least recently used clean entry is evicted first")
	for _, key := range []string{"a", "c", "d"} {
		_, ok := c.Get(key, "test")
		assert.True(t, ok, key)
	}
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestCachePrefersEvictingCleanOverDirty(t *testing.T) {
	c := NewCache(350, 0)

	c.Set(cacheEntry("dirty-old", 100), true)
	c.Set(cacheEntry("clean", 100), false)
	c.Set(cacheEntry("dirty-new", 100), true)
	c.Set(cacheEntry("fresh", 100), false)

	// The clean entry goes even though the dirty one is older.
	_, ok := c.Get("clean", "test")
	assert.False(t, ok)
	_, ok = c.Get("dirty-old", "test")
	assert.True(t, ok)
}

func TestCacheEvictsDirtyWhenNoCleanRemain(t *testing.T) {
	c := NewCache(250, 0)

	c.Set(cacheEntry("d1", 100), true)
	c.Set(cacheEntry("d2", 100), true)
	c.Set(cacheEntry("d3", 100), true)

	stats := c.Stats()
	assert.LessOrEqual(t, stats.Bytes, int64(250))
	assert.Less(t, stats.Entries, 3)
}

func TestCacheEntryBound(t *testing.T) {
	c := NewCache(1<<20, 2)

	for i := 0; i < 5; i++ {
		c.Set(cacheEntry(fmt.Sprintf("k%d", i), 10), false)
	}
	assert.Equal(t, 2, c.Stats().Entries)
}

func TestCacheDirtyTracking(t *testing.T) {
	c := NewCache(1<<20, 0)

	e1 := cacheEntry("a", 10)
	e2 := cacheEntry("b", 10)
	c.Set(e1, true)
	c.Set(e2, true)
	c.Set(cacheEntry("c", 10), false)

	dirty := c.DirtyEntries()
	assert.Len(t, dirty, 2)

	c.MarkClean([]string{e1.ID})
	assert.Len(t, c.DirtyEntries(), 1)
	assert.Equal(t, 1, c.Stats().Dirty)

	// Re-setting dirty after MarkClean marks it again.
	c.Set(e1, true)
	assert.Len(t, c.DirtyEntries(), 2)
}

func TestCacheRemoveAndClear(t *testing.T) {
	c := NewCache(1<<20, 0)

	c.Set(cacheEntry("a", 10), false)
	c.Set(cacheEntry("b", 10), true)

	c.Remove("a", "test")
	_, ok := c.Get("a", "test")
	assert.False(t, ok)

	c.Clear()
	stats := c.Stats()
	assert.Equal(t, 0, stats.Entries)
	assert.Equal(t, int64(0), stats.Bytes)
	assert.Empty(t, c.DirtyEntries())
}
