// Package cache implements the Entity Cache: a concurrent in-memory mirror of
// remote guilds and their channels, threads, roles, members, voice states,
// scheduled events and stage instances, plus the process-wide user and
// presence maps.
//
// Merge rules:
//   - Guild create/available is additive: entries absent from a new snapshot
//     are kept, never implicitly deleted
//   - Users are mutated in place, never swapped
//   - Sub-entity writes for an uncached guild are rejected (ok=false) and the
//     caller drops the event
//   - Members are persisted only when member tracking is enabled by Policy
//
// Every exported lookup returns a copy; callers never share memory with the
// cache's live entries.
package cache
