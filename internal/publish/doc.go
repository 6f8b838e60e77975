// Package publish fans engine snapshots out through Redis.
//
// Every snapshot is written to three places in one MULTI/EXEC:
//   - <key>: the latest snapshot as JSON
//   - <key>:symbols: a hash of symbol to quote JSON, replaced wholesale
//   - <channel>: a pub/sub message carrying the snapshot JSON
//
// Publishing runs on its own goroutine. When Redis is slower than the engine
// only the newest pending snapshot is kept.
package publish
