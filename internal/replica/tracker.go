// Package replica maintains per-instrument order book replicas: one
// engine applies the feed in arrival order, a tracker accounts for
// delivery health, and a manager owns the pipeline per instrument.
package replica

import (
	"math"
	"sync"
	"sync/atomic"
)

// DefaultLatencyWindow is the number of latency samples retained per
// instrument.
const DefaultLatencyWindow = 200

// Tracker accumulates one instrument's delivery health: a bounded
// FIFO window of end-to-end latency samples and a monotonic dropped
// counter. All methods are safe for concurrent use; drops arrive from
// transport goroutines while the apply loop records latencies.
type Tracker struct {
	mu      sync.Mutex
	samples []int64
	pos     int
	count   int
	dropped atomic.Uint64
}

// NewTracker returns a tracker windowing the most recent window
// samples; non-positive window falls back to DefaultLatencyWindow.
func NewTracker(window int) *Tracker {
	if window <= 0 {
		window = DefaultLatencyWindow
	}
	return &Tracker{samples: make([]int64, window)}
}

// Record appends one latency sample in milliseconds, evicting the
// oldest once the window is full. Negative samples (producer clock
// ahead of ours) are kept as observed.
func (t *Tracker) Record(ms int64) {
	t.mu.Lock()
	t.samples[t.pos] = ms
	t.pos = (t.pos + 1) % len(t.samples)
	if t.count < len(t.samples) {
		t.count++
	}
	t.mu.Unlock()
}

// Mean is the windowed latency mean rounded to the nearest integer,
// 0 while no samples exist.
func (t *Tracker) Mean() int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.count == 0 {
		return 0
	}
	var sum int64
	for i := 0; i < t.count; i++ {
		sum += t.samples[i]
	}
	return int64(math.Round(float64(sum) / float64(t.count)))
}

// Window reports how many samples are currently retained.
func (t *Tracker) Window() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

// RecordDrop counts one dropped message.
func (t *Tracker) RecordDrop() { t.dropped.Add(1) }

// RecordDrops counts n dropped messages at once, as reported by
// buffer compaction.
func (t *Tracker) RecordDrops(n int) {
	if n > 0 {
		t.dropped.Add(uint64(n))
	}
}

// Drops reports the lifetime dropped count. It never decreases.
func (t *Tracker) Drops() uint64 { return t.dropped.Load() }
