package stats

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// SampleWindow is the number of most-recent latency samples retained for
// percentile extraction. Older samples are dropped FIFO.
const SampleWindow = 1000

// Summary is a point-in-time view of the aggregate counters. The fields are
// read individually from atomics, not under one lock, so they are each
// accurate but not jointly transactional.
type Summary struct {
	TotalRequests    uint64
	AcceptedRequests uint64
	RejectedRequests uint64
	ActiveClients    int64
	AverageLatency   time.Duration
}

// LatencyPercentiles holds nearest-rank percentiles over the sample window.
// For any non-empty window the fields are monotonically non-decreasing.
type LatencyPercentiles struct {
	P50  time.Duration
	P90  time.Duration
	P95  time.Duration
	P99  time.Duration
	P999 time.Duration
}

// Aggregator collects process-wide admission counters and a bounded window
// of per-decision latency samples.
type Aggregator struct {
	total         atomic.Uint64
	accepted      atomic.Uint64
	rejected      atomic.Uint64
	activeClients atomic.Int64
	latencySum    atomic.Int64 // nanoseconds

	mu      sync.Mutex
	samples [SampleWindow]time.Duration
	head    int // next write position
	count   int // number of valid samples, <= SampleWindow
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{}
}

// RecordOutcome records one admission decision and its latency.
//
// The counter increments are independent atomic operations; the sample ring
// append (with FIFO eviction at capacity) happens under the ring mutex.
func (a *Aggregator) RecordOutcome(accepted bool, latency time.Duration) {
	a.total.Add(1)
	if accepted {
		a.accepted.Add(1)
	} else {
		a.rejected.Add(1)
	}
	a.latencySum.Add(int64(latency))

	a.mu.Lock()
	a.samples[a.head] = latency
	a.head = (a.head + 1) % SampleWindow
	if a.count < SampleWindow {
		a.count++
	}
	a.mu.Unlock()
}

// AddActiveClients adjusts the active client gauge by delta.
func (a *Aggregator) AddActiveClients(delta int64) {
	a.activeClients.Add(delta)
}

// ActiveClients returns the current active client count.
func (a *Aggregator) ActiveClients() int64 {
	return a.activeClients.Load()
}

// Snapshot returns the current counter values and derived average latency.
func (a *Aggregator) Snapshot() Summary {
	return Summary{
		TotalRequests:    a.total.Load(),
		AcceptedRequests: a.accepted.Load(),
		RejectedRequests: a.rejected.Load(),
		ActiveClients:    a.activeClients.Load(),
		AverageLatency:   a.AverageLatency(),
	}
}

// AcceptanceRate returns the percentage of accepted requests, 0 when no
// requests have been recorded.
func (a *Aggregator) AcceptanceRate() float64 {
	total := a.total.Load()
	if total == 0 {
		return 0
	}
	return float64(a.accepted.Load()) / float64(total) * 100
}

// RejectionRate returns the percentage of rejected requests, 0 when no
// requests have been recorded.
func (a *Aggregator) RejectionRate() float64 {
	total := a.total.Load()
	if total == 0 {
		return 0
	}
	return float64(a.rejected.Load()) / float64(total) * 100
}

// AverageLatency returns the mean decision latency over all recorded
// requests, 0 when no requests have been recorded.
func (a *Aggregator) AverageLatency() time.Duration {
	total := a.total.Load()
	if total == 0 {
		return 0
	}
	return time.Duration(a.latencySum.Load() / int64(total))
}

// Percentiles computes nearest-rank latency percentiles from a snapshot copy
// of the sample window. All five values are 0 when the window is empty.
func (a *Aggregator) Percentiles() LatencyPercentiles {
	a.mu.Lock()
	snapshot := make([]time.Duration, a.count)
	copy(snapshot, a.samples[:a.count])
	a.mu.Unlock()

	if len(snapshot) == 0 {
		return LatencyPercentiles{}
	}

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i] < snapshot[j] })

	rank := func(p float64) time.Duration {
		idx := int(p / 100 * float64(len(snapshot)-1))
		return snapshot[idx]
	}

	return LatencyPercentiles{
		P50:  rank(50),
		P90:  rank(90),
		P95:  rank(95),
		P99:  rank(99),
		P999: rank(99.9),
	}
}

// Reset zeroes the request counters, the latency sum, and the sample window.
// The active client gauge tracks registry membership, which a statistics
// reset does not change, so it is left alone.
func (a *Aggregator) Reset() {
	a.total.Store(0)
	a.accepted.Store(0)
	a.rejected.Store(0)
	a.latencySum.Store(0)

	a.mu.Lock()
	a.head = 0
	a.count = 0
	a.mu.Unlock()
}
