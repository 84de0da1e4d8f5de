package audit

import (
	"context"
	"sync"
	"time"
)

// DefaultMemoryMaxRecords bounds the in-memory store; the oldest record is
// dropped when a new one arrives at capacity.
const DefaultMemoryMaxRecords = 10000

// MemoryStore keeps audit records in memory. It is the default store and
// loses all data when the process exits.
type MemoryStore struct {
	mu         sync.RWMutex
	records    []*Record
	maxRecords int
}

// NewMemoryStore creates a memory store holding at most maxRecords entries.
// A non-positive maxRecords selects DefaultMemoryMaxRecords.
func NewMemoryStore(maxRecords int) *MemoryStore {
	if maxRecords <= 0 {
		maxRecords = DefaultMemoryMaxRecords
	}
	return &MemoryStore{
		maxRecords: maxRecords,
	}
}

// Append persists one record, evicting the oldest at capacity.
func (m *MemoryStore) Append(ctx context.Context, record *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.records) >= m.maxRecords {
		m.records = m.records[1:]
	}
	m.records = append(m.records, record)
	return nil
}

// Recent returns up to limit records, newest first.
func (m *MemoryStore) Recent(ctx context.Context, limit int) ([]*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit > len(m.records) {
		limit = len(m.records)
	}

	out := make([]*Record, 0, limit)
	for i := len(m.records) - 1; i >= len(m.records)-limit; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

// Prune deletes records older than the cutoff.
func (m *MemoryStore) Prune(ctx context.Context, olderThan time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Records arrive in timestamp order; find the first one to keep.
	keepFrom := len(m.records)
	for i, record := range m.records {
		if !record.Timestamp.Before(olderThan) {
			keepFrom = i
			break
		}
	}

	deleted := int64(keepFrom)
	m.records = append([]*Record(nil), m.records[keepFrom:]...)
	return deleted, nil
}

// Len returns the current number of stored records.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// Close is a no-op for the memory store.
func (m *MemoryStore) Close() error {
	return nil
}
