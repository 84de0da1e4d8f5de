package registry

import (
	"errors"
	"sync"
	"time"

	"mercator-hq/turnstile/pkg/admission/quota"
)

// ErrCapacityExceeded is returned by GetOrCreate when the registry already
// holds maxClients entries and the requested client has no cell yet.
var ErrCapacityExceeded = errors.New("registry: client capacity exceeded")

// Limit is a client's bucket configuration.
type Limit struct {
	// Capacity is the maximum number of tokens (burst size).
	Capacity int64

	// RefillRate is the number of tokens added per second.
	RefillRate float64
}

// Registry maps client identifiers to quota cells.
type Registry struct {
	mu         sync.RWMutex
	clients    map[string]*quota.Bucket
	overrides  map[string]Limit
	defaults   Limit
	maxClients int
}

// New creates a registry with the given process defaults, population cap,
// and initial per-client overrides. The overrides map is copied.
func New(defaults Limit, maxClients int, overrides map[string]Limit) *Registry {
	r := &Registry{
		clients:    make(map[string]*quota.Bucket),
		overrides:  make(map[string]Limit, len(overrides)),
		defaults:   defaults,
		maxClients: maxClients,
	}
	for id, limit := range overrides {
		r.overrides[id] = limit
	}
	return r
}

// GetOrCreate returns the client's cell, creating it on first use.
//
// The returned bool reports whether a new cell was created by this call.
// Creation is insert-if-absent: concurrent first-time requests for the same
// id all observe the same cell. When the registry is at maxClients and the
// client has no cell, ErrCapacityExceeded is returned and nothing is created.
func (r *Registry) GetOrCreate(clientID string) (*quota.Bucket, bool, error) {
	r.mu.RLock()
	bucket, ok := r.clients[clientID]
	r.mu.RUnlock()
	if ok {
		return bucket, false, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Re-check under the write lock: another goroutine may have won the race.
	if bucket, ok := r.clients[clientID]; ok {
		return bucket, false, nil
	}

	if len(r.clients) >= r.maxClients {
		return nil, false, ErrCapacityExceeded
	}

	limit := r.limitForLocked(clientID)
	bucket = quota.NewBucket(limit.Capacity, limit.RefillRate)
	r.clients[clientID] = bucket

	return bucket, true, nil
}

// Get returns the client's cell without creating one.
func (r *Registry) Get(clientID string) (*quota.Bucket, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	bucket, ok := r.clients[clientID]
	return bucket, ok
}

// UpdateLimit stores a per-client override and drops any live cell for that
// client, so the next request creates a fresh cell with the new parameters
// and zeroed counters. An in-flight Consume against the old cell completes
// against the stale cell; this is a best-effort cutover, not a hard one.
//
// The returned bool reports whether a live cell was removed.
func (r *Registry) UpdateLimit(clientID string, limit Limit) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.overrides[clientID] = limit

	if _, ok := r.clients[clientID]; ok {
		delete(r.clients, clientID)
		return true
	}
	return false
}

// Remove deletes the client's cell if present. The override table is left
// untouched. Returns whether an entry was removed.
func (r *Registry) Remove(clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.clients[clientID]; !ok {
		return false
	}
	delete(r.clients, clientID)
	return true
}

// Sweep removes every cell whose last replenishment is older than
// idleThreshold and returns the number of cells removed.
//
// The enumeration holds the registry write lock for its duration; each
// bucket's own lock is only taken for the brief IdleSince read, so the sweep
// never blocks on per-cell token arithmetic.
func (r *Registry) Sweep(idleThreshold time.Duration) int {
	threshold := time.Now().Add(-idleThreshold)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, bucket := range r.clients {
		if bucket.IdleSince(threshold) {
			delete(r.clients, id)
			removed++
		}
	}
	return removed
}

// ListActive returns a point-in-time snapshot of registered client ids.
func (r *Registry) ListActive() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}

// Len returns the current number of registered cells.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}

// ResetAll resets every registered cell to full capacity with zeroed
// counters. Registry membership and overrides are unchanged.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, bucket := range r.clients {
		bucket.Reset()
	}
}

// LimitFor resolves the limit a cell for clientID would be created with:
// the client's override if one exists, the process defaults otherwise.
func (r *Registry) LimitFor(clientID string) Limit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.limitForLocked(clientID)
}

// Defaults returns the process-default limit.
func (r *Registry) Defaults() Limit {
	return r.defaults
}

// Overrides returns a copy of the current override table.
func (r *Registry) Overrides() map[string]Limit {
	r.mu.RLock()
	defer r.mu.RUnlock()

	overrides := make(map[string]Limit, len(r.overrides))
	for id, limit := range r.overrides {
		overrides[id] = limit
	}
	return overrides
}

func (r *Registry) limitForLocked(clientID string) Limit {
	if limit, ok := r.overrides[clientID]; ok {
		return limit
	}
	return r.defaults
}
