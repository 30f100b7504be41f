// Package contactguard is the authentication and caching core of the
// Contacts API: a purpose-tagged signed-token issuer/verifier, a
// logout-time revocation list, a distributed fixed-window rate limiter,
// and a cache-aside layer for the upcoming-birthdays query. The four
// components share one Redis handle and one secret-management
// discipline.
//
// The package is designed for concurrent server workloads: Engine
// methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// contactguard is the core, not the application. The HTTP framework,
// the contact/user persistence layer, and email delivery are external
// collaborators: the persistence layer is injected as a
// [CalendarSource], and package middleware offers net/http adapters for
// the request pipeline. Cross-request coordination happens exclusively
// through Redis; no component holds an in-process lock across requests.
//
// # Failure semantics
//
// Nothing in this core crashes the host process. Token errors and
// rate-limit rejections terminate the single request; Redis failures
// degrade per component: the cache falls back to direct computation,
// the rate limiter follows its configured fail-open/fail-closed policy,
// and the revocation list follows its own (fail-closed by default).
package contactguard
