package cluster

import (
	"sort"
	"sync"
	"time"
)

// latencySampleWindow bounds the number of samples kept per latency class.
const latencySampleWindow = 512

// latencyWindow is a fixed-size ring of duration samples supporting
// percentile queries.
type latencyWindow struct {
	mu      sync.Mutex
	samples []time.Duration
	next    int
	full    bool
}

func newLatencyWindow() *latencyWindow {
	return &latencyWindow{samples: make([]time.Duration, latencySampleWindow)}
}

func (w *latencyWindow) Observe(d time.Duration) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.samples[w.next] = d
	w.next++
	if w.next == len(w.samples) {
		w.next = 0
		w.full = true
	}
}

// Percentile returns the q-th percentile (0 < q <= 1) of the current window,
// or zero when no samples exist.
func (w *latencyWindow) Percentile(q float64) time.Duration {
	w.mu.Lock()
	n := w.next
	if w.full {
		n = len(w.samples)
	}
	if n == 0 {
		w.mu.Unlock()
		return 0
	}
	sorted := make([]time.Duration, n)
	copy(sorted, w.samples[:n])
	w.mu.Unlock()

	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(float64(n)*q) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return sorted[idx]
}

func (w *latencyWindow) snapshot() LatencyStats {
	return LatencyStats{
		P50: w.Percentile(0.50),
		P95: w.Percentile(0.95),
		P99: w.Percentile(0.99),
	}
}

// LatencyStats holds percentile latencies for one operation class.
type LatencyStats struct {
	P50 time.Duration `json:"p50"`
	P95 time.Duration `json:"p95"`
	P99 time.Duration `json:"p99"`
}

// ReplicationStats is the cluster-level statistics snapshot recomputed every
// sync cycle.
type ReplicationStats struct {
	NodeID            string  `json:"nodeId"`
	TotalEntries      int     `json:"totalEntries"`
	ReplicatedEntries int     `json:"replicatedEntries"`
	// ReplicationHealth is the fraction of entries that have reached the
	// configured replication factor. It is observable, not a blocking
	// guarantee.
	ReplicationHealth float64 `json:"replicationHealth"`
	OnlineNodes       int     `json:"onlineNodes"`
	OfflineNodes      int     `json:"offlineNodes"`
	PendingOps        int     `json:"pendingOps"`
	CompletedOps      int64   `json:"completedOps"`
	FailedOps         int64   `json:"failedOps"`

	Read  LatencyStats `json:"read"`
	Write LatencyStats `json:"write"`
	Sync  LatencyStats `json:"sync"`
}
