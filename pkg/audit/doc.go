// Package audit records admission decisions for later inspection.
//
// # Overview
//
// Every audited decision becomes a Record (uuid, timestamp, client id,
// verdict, latency) appended to a Store. Two stores are provided:
//
//   - MemoryStore: bounded in-memory ring, the default
//   - SQLiteStore: durable decision log backed by modernc.org/sqlite
//
// The Recorder decouples the hot admission path from storage: records are
// buffered on a channel and written by a background worker, and a full
// buffer drops records rather than blocking a decision.
//
// The audit log is write-only from the limiter's perspective: it is never
// read back to restore limiter state.
//
// # Retention
//
// A Scheduler runs the Pruner on a cron schedule to delete records older
// than the configured retention period:
//
//	pruner := audit.NewPruner(store, &audit.RetentionConfig{
//	    Retention: 30 * 24 * time.Hour,
//	    Schedule:  "0 3 * * *", // daily at 3 AM
//	})
//	scheduler := audit.NewScheduler(pruner)
//	_ = scheduler.Start(ctx)
package audit
