// Package registry maps client identifiers to their quota cells.
//
// # Overview
//
// The Registry owns creation, override resolution, population-cap
// enforcement, and eviction of per-client quota.Bucket cells. Structural
// changes (insert, erase, enumeration) are guarded by a registry-wide
// RWMutex that is distinct from the per-bucket locks: once a caller holds a
// bucket reference, token arithmetic on that bucket proceeds without
// touching the registry lock.
//
// Per-client limit overrides live in a separate table that survives eviction
// of the cell itself: overrides are configuration, the cell is runtime state.
//
// # Population cap
//
// GetOrCreate refuses to create a cell once maxClients entries exist. It
// never evicts another client to make room; reclaiming space is the job of
// Sweep or explicit Remove calls.
package registry
