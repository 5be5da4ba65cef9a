// Package dispatch turns gateway DISPATCH payloads into cache mutations and
// typed notifications.
//
// # Flow
//
//	socket read loop ─► Pump (per shard, ordered) ─► Dispatcher.Dispatch
//	                                                  │ 1. ParseEventKind
//	                                                  │ 2. decode + mutate cache (synchronous)
//	                                                  └ 3. fan out to subscribers (async)
//
// Payloads of one shard are dispatched in receipt order. Each subscriber
// invocation runs on its own goroutine, so completion order across
// dispatches is not guaranteed. HandlerTimeout is advisory: slow subscribers
// are logged, never cancelled.
//
// # Errors
//
// Decode failures and events that reference an uncached guild are logged and
// counted in Stats; nothing is returned to the connection.
package dispatch
