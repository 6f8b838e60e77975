// Package recorder persists delivered quote batches for later analysis.
//
// Components:
//   - Recorder: storage backend (noop, SQLite via modernc.org/sqlite, or
//     PostgreSQL via pgx)
//   - Writer: consumes engine snapshots and writes them in batches
//   - Pruner: deletes rows older than the retention window on a cron schedule
package recorder
