package quota

import (
	"sync"
	"time"
)

// Bucket implements the token bucket algorithm for a single client.
//
// The bucket allows bursts up to its capacity while maintaining an average
// rate over time. Tokens are a float64 so that fractional replenishment from
// short elapsed intervals is never lost. The bucket also carries the client's
// local request counters so that a decision and its accounting commit under
// one lock acquisition.
//
// lastRefill uses time.Time's monotonic clock reading and never moves
// backward: a non-positive elapsed interval skips replenishment entirely.
type Bucket struct {
	mu         sync.Mutex
	tokens     float64
	capacity   int64
	refillRate float64 // tokens per second
	lastRefill time.Time

	totalRequests    uint64
	acceptedRequests uint64
}

// Snapshot is an immutable view of a bucket's state at a single point in
// time, taken under the bucket lock so the fields are mutually consistent.
type Snapshot struct {
	Tokens           float64
	Capacity         int64
	RefillRate       float64
	TotalRequests    uint64
	AcceptedRequests uint64
	LastRefill       time.Time
}

// NewBucket creates a bucket that starts full.
//
// Parameters:
//   - capacity: maximum number of tokens (burst size)
//   - refillRate: tokens added per second (average rate)
func NewBucket(capacity int64, refillRate float64) *Bucket {
	return &Bucket{
		tokens:     float64(capacity),
		capacity:   capacity,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Consume attempts to take n tokens from the bucket.
//
// The refill pass, the totalRequests increment, and the take (or rejection)
// are one atomic unit: concurrent Consume calls against the same bucket
// serialize, and a rejected call leaves the token level unchanged.
func (b *Bucket) Consume(n int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(time.Now())
	b.totalRequests++

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		b.acceptedRequests++
		return true
	}

	return false
}

// Snapshot forces a replenishment pass and returns a consistent copy of the
// bucket's state. It is read-consistent with Consume: no torn reads.
func (b *Bucket) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(time.Now())

	return Snapshot{
		Tokens:           b.tokens,
		Capacity:         b.capacity,
		RefillRate:       b.refillRate,
		TotalRequests:    b.totalRequests,
		AcceptedRequests: b.acceptedRequests,
		LastRefill:       b.lastRefill,
	}
}

// Reset refills the bucket to capacity and zeroes both counters.
func (b *Bucket) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.tokens = float64(b.capacity)
	b.lastRefill = time.Now()
	b.totalRequests = 0
	b.acceptedRequests = 0
}

// IdleSince reports whether the bucket's last replenishment happened before
// threshold. It reads the stored timestamp as-is and does not trigger a
// refill, so an untouched bucket keeps aging.
func (b *Bucket) IdleSince(threshold time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.lastRefill.Before(threshold)
}

// refillLocked credits the bucket for time elapsed since the last refill and
// clamps to capacity. Caller must hold the lock.
//
// A non-positive elapsed interval (repeated call within the same tick) is
// skipped: tokens are never subtracted for negative elapsed time and
// lastRefill never moves backward.
func (b *Bucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed * b.refillRate
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
	b.lastRefill = now
}
