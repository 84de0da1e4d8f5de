// Package stats aggregates process-wide admission statistics.
//
// # Overview
//
// The Aggregator keeps two distinct resources with different concurrency
// primitives:
//
//   - Scalar counters (total/accepted/rejected/active clients, summed
//     latency) as independent atomics. Each counter individually never loses
//     an update; callers must not assume a consistent joint snapshot of all
//     counters mid-update.
//   - A bounded most-recent-1000 latency sample ring under a mutex, since
//     insertion-with-eviction is a compound operation.
//
// Percentiles are nearest-rank: computed from a sorted snapshot copy of the
// ring, picking the element at rank floor(p/100 * (count-1)).
package stats
