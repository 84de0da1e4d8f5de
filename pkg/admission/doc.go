// Package admission provides a per-client request admission gate.
//
// # Overview
//
// The Limiter decides, for each request tagged with a client identifier,
// whether to admit or reject it against a configurable token-bucket quota.
// It composes three concurrent resources:
//
//   - registry: client id -> quota cell, with per-client overrides, a
//     population cap, and idle eviction
//   - stats: lock-free aggregate counters plus a bounded latency sample
//     window with nearest-rank percentile extraction
//   - a background sweeper goroutine that evicts idle clients
//
// # Usage
//
//	limiter, err := admission.New(admission.Config{
//	    DefaultCapacity:   100,
//	    DefaultRefillRate: 10,
//	    CleanupInterval:   5 * time.Minute,
//	    EnableMetrics:     true,
//	    MaxClients:        10000,
//	})
//	if err != nil {
//	    return err
//	}
//	defer limiter.Close()
//
//	if limiter.AllowRequest("client-42") {
//	    // Admitted
//	}
//
// # Error model
//
// AllowRequest communicates every failure mode through its boolean verdict.
// A registry at its population cap rejects requests from brand-new clients
// with the same false that quota exhaustion produces; the two outcomes are
// deliberately conflated at the API (only the Prometheus registry_full
// counter distinguishes them).
//
// # Thread Safety
//
// All Limiter methods are safe for concurrent use. Per-client decisions are
// totally ordered only with respect to the same client; decisions for
// different clients never block each other once their cells exist.
package admission
