// Package quota implements the per-client token bucket cell.
//
// # Overview
//
// A quota.Bucket holds one client's token state together with that client's
// local usage counters. Tokens are replenished lazily: every operation that
// needs the current token level first credits the bucket for the time that
// has passed since the last replenishment, clamped to capacity.
//
//	bucket := quota.NewBucket(100, 10) // 100 capacity, 10 tokens/sec
//	if bucket.Consume(1) {
//	    // Request admitted
//	} else {
//	    // Quota exhausted
//	}
//
// # Thread Safety
//
// All operations on a Bucket are serialized by an internal sync.Mutex.
// Refill, counter updates, and the token take execute as a single critical
// section, so no caller ever observes an intermediate state. Distinct
// buckets never contend with each other.
package quota
