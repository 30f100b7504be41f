// Package ratelimit provides the Redis-backed fixed-window admission
// control for the Contacts API core.
//
// # Window semantics
//
// One counter per (client, route) pair, created lazily on the first
// admission in a window and expired with it. The ceiling is checked
// before incrementing inside a Lua script, so rejected attempts never
// drift the counter past the ceiling and window resets cannot lose
// concurrent updates.
//
// # Failure semantics
//
// Redis unavailability is resolved by the configured [FailurePolicy].
// The default wiring uses [FailOpen]; the caller is expected to log the
// degradation using the error returned alongside the Decision.
package ratelimit
