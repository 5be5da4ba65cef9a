// Package connection implements the gateway session layer.
//
// A Shard owns one resumable session and drives one WebSocket connection at
// a time through Hello, Identify or Resume, and the heartbeat loop. The
// Manager:
//   - Resolves the shard layout from GET /gateway/bot
//   - Runs one supervisor per shard with exponential backoff
//   - Stops immediately on authentication or unsupported-configuration failures
//   - Persists session snapshots so a restart can resume
//   - Serves read-only cache lookups across shards
package connection
