package memory

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// metrics holds the subsystem's Prometheus collectors. A nil *metrics is
// valid and makes every method a no-op, so metrics stay optional.
type metrics struct {
	opsTotal    *prometheus.CounterVec
	opLatency   *prometheus.HistogramVec
	cacheEvents *prometheus.CounterVec
	gcRemoved   prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		return nil
	}
	m := &metrics{
		opsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openswarm",
			Subsystem: "memory",
			Name:      "operations_total",
			Help:      "Store API operations by name and status.",
		}, []string{"operation", "status"}),
		opLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "openswarm",
			Subsystem: "memory",
			Name:      "operation_duration_seconds",
			Help:      "Store API operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		cacheEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "openswarm",
			Subsystem: "memory",
			Name:      "cache_events_total",
			Help:      "Cache hits and misses.",
		}, []string{"event"}),
		gcRemoved: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "openswarm",
			Subsystem: "memory",
			Name:      "gc_removed_total",
			Help:      "Entries removed by TTL sweeps.",
		}),
	}
	reg.MustRegister(m.opsTotal, m.opLatency, m.cacheEvents, m.gcRemoved)
	return m
}

func (m *metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.opsTotal.WithLabelValues(op, status).Inc()
	m.opLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *metrics) cacheEvent(event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(event).Inc()
}

func (m *metrics) gcSwept(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.gcRemoved.Add(float64(count))
}
