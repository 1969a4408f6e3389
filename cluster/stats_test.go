package cluster

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLatencyWindowEmpty(t *testing.T) {
	w := newLatencyWindow()
	assert.Equal(t, time.Duration(0), w.Percentile(0.5))
	assert.Equal(t, LatencyStats{}, w.snapshot())
}

func TestLatencyWindowPercentiles(t *testing.T) {
	w := newLatencyWindow()
	for i := 1; i <= 100; i++ {
		w.Observe(time.Duration(i) * time.Millisecond)
	}

	assert.Equal(t, 50*time.Millisecond, w.Percentile(0.50))
	assert.Equal(t, 95*time.Millisecond, w.Percentile(0.95))
	assert.Equal(t, 99*time.Millisecond, w.Percentile(0.99))

	snap := w.snapshot()
	assert.Equal(t, 50*time.Millisecond, snap.P50)
	assert.Equal(t, 99*time.Millisecond, snap.P99)
}

func TestLatencyWindowWrapsAround(t *testing.T) {
	w := newLatencyWindow()

	// Fill past capacity with a high value, then overwrite the whole
	// window with a low one. Old samples must age out.
	for i := 0; i < latencySampleWindow; i++ {
		w.Observe(time.Second)
	}
	for i := 0; i < latencySampleWindow; i++ {
		w.Observe(time.Millisecond)
	}
	assert.Equal(t, time.Millisecond, w.Percentile(0.99))
}

func TestLatencyWindowSingleSample(t *testing.T) {
	w := newLatencyWindow()
	w.Observe(7 * time.Millisecond)
	assert.Equal(t, 7*time.Millisecond, w.Percentile(0.5))
	assert.Equal(t, 7*time.Millisecond, w.Percentile(0.99))
}
