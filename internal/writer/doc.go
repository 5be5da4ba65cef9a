// Package writer archives raw gateway dispatches to PostgreSQL.
//
// The EventWriter taps the dispatcher, queues payloads without blocking the
// shard pumps and inserts them in batches. The archive is append-only:
// dispatches replayed by a resume hit the (shard_id, session_id, seq) key and
// are skipped.
package writer
