// Package cache wraps the upcoming-birthdays query in a per-principal,
// per-day cache-aside layer backed by Redis.
//
// The cache key embeds the invalidation boundary itself: part of the key
// is the current calendar date, so yesterday's entries cannot be served
// today no matter what their TTL says. The TTL exists as an independent
// second bound and to keep dead keys from accumulating.
//
// The package also owns the recurring-date window math ([NextOccurrence],
// [InWindow]) that the wrapped query is defined in terms of.
package cache
