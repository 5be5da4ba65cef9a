// Package database provides the optional PostgreSQL connection used to
// persist gateway sessions across restarts and to archive raw dispatches.
//
// Tables:
//   - gateway_sessions: one resumable session per shard
//   - gateway_events: append-only archive of dispatch payloads
package database
