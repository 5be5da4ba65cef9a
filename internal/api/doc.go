// Package api is the thin REST collaborator of the gateway client.
//
// Only the endpoints the session layer needs are implemented:
//   - GET /gateway/bot: gateway URL, recommended shard count, session start limit
//
// Requests authenticate with a "Bot <token>" header and retry 5xx/429
// responses with jittered exponential backoff.
package api
