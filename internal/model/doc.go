// Package model defines the remote entities mirrored by the gateway cache.
//
// All types use the gateway's JSON field names so payloads decode straight into
// them. Guild sub-collections are maps keyed by snowflake id.
//
// Conventions:
//   - IDs: snowflake.ID (64-bit, embedded creation timestamp)
//   - Members reference users by id; user data lives in one process-wide map
//   - Optional wire fields are pointers; absent means "not sent"
package model
