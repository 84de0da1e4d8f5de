package audit

import (
	"context"
	"time"
)

// Record is one audited admission decision.
type Record struct {
	// ID is a unique identifier for this record.
	ID string

	// Timestamp is when the decision was made.
	Timestamp time.Time

	// ClientID is the client the decision was made for.
	ClientID string

	// Allowed is the verdict.
	Allowed bool

	// Latency is how long the decision took.
	Latency time.Duration
}

// Store persists audit records. Implementations must be safe for concurrent
// use.
type Store interface {
	// Append persists one record.
	Append(ctx context.Context, record *Record) error

	// Recent returns up to limit records, newest first.
	Recent(ctx context.Context, limit int) ([]*Record, error)

	// Prune deletes records older than the cutoff and returns how many were
	// deleted.
	Prune(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
