package memory

import (
	"context"
	"errors"
	"time"
)

// loopOpTimeout bounds each background cycle's backend work so a slow
// backend fails the cycle instead of wedging the loop.
const loopOpTimeout = 30 * time.Second

// Cleanup runs one TTL sweep immediately and returns the number of expired
// entries removed.
func (m *Manager) Cleanup(ctx context.Context) (int, error) {
	start := time.Now()
	count, err := m.sweep(ctx)
	m.metrics.observe("cleanup", start, err)
	return count, err
}

// sweep physically deletes every expired entry from the backend and the
// cache, updating partition accounting.
func (m *Manager) sweep(ctx context.Context) (int, error) {
	if err := m.ready(); err != nil {
		return 0, err
	}
	entries, err := m.backend.AllEntries(ctx)
	if err != nil {
		return 0, OpError("manager.Cleanup", "backend", "", err)
	}

	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.Expired(now) {
			continue
		}
		if err := m.backend.Delete(ctx, e.ID); err != nil && !errors.Is(err, ErrNotFound) {
			return removed, OpError("manager.Cleanup", "backend", e.ID, err)
		}
		m.cache.Remove(e.Key, e.Namespace)
		m.parts.account(e.Partition, -e.Size, -1)
		removed++
	}
	if removed > 0 {
		m.logger.Info("TTL sweep removed expired entries", map[string]interface{}{
			"removed": removed,
		})
	}
	m.metrics.gcSwept(removed)
	return removed, nil
}

// expireAsync schedules deletion of an expired entry discovered on a read
// path. Lazy expiry never blocks the read.
func (m *Manager) expireAsync(entry *Entry) {
	e := entry.Clone()
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), loopOpTimeout)
		defer cancel()
		if err := m.backend.Delete(ctx, e.ID); err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.Debug("Lazy expiry delete failed", map[string]interface{}{
				"entry_id": e.ID,
				"error":    err.Error(),
			})
			return
		}
		m.cache.Remove(e.Key, e.Namespace)
		m.parts.account(e.Partition, -e.Size, -1)
	}()
}

func (m *Manager) gcLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.GC.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.loopCtx, loopOpTimeout)
			if _, err := m.sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				m.logger.Warn("TTL sweep failed", map[string]interface{}{
					"error": err.Error(),
				})
			}
			cancel()
		case <-m.loopCtx.Done():
			return
		}
	}
}

func (m *Manager) flushLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.Cache.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.loopCtx, loopOpTimeout)
			m.flushDirty(ctx)
			cancel()
		case <-m.loopCtx.Done():
			return
		}
	}
}

// flushDirty batch-writes dirty cache entries (read-access bookkeeping and
// any deferred mutations) through the backend, then marks them clean.
func (m *Manager) flushDirty(ctx context.Context) {
	dirty := m.cache.DirtyEntries()
	if len(dirty) == 0 {
		return
	}
	flushed := make([]string, 0, len(dirty))
	for _, e := range dirty {
		err := m.backend.Update(ctx, e)
		if errors.Is(err, ErrNotFound) {
			// Entry vanished under us (deleted or swept); drop it.
			m.cache.Remove(e.Key, e.Namespace)
			continue
		}
		if err != nil {
			m.logger.Warn("Write-back flush failed", map[string]interface{}{
				"entry_id": e.ID,
				"error":    err.Error(),
			})
			continue
		}
		flushed = append(flushed, e.ID)
	}
	if len(flushed) > 0 {
		m.cache.MarkClean(flushed)
		m.logger.Debug("Flushed dirty cache entries", map[string]interface{}{
			"count": len(flushed),
		})
	}
}
