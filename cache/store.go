package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps Redis transport failures. GetOrCompute never
// returns it to callers (store failures degrade to pass-through), but
// Invalidate does, since a failed invalidation must not be silent.
var ErrRedisUnavailable = errors.New("cache redis unavailable")

const dayKeyLayout = "2006-01-02"

// Match is one contact whose recurring date falls inside the window.
type Match struct {
	ContactID string `json:"contact_id"`
	Name      string `json:"name,omitempty"`
	Occurs    string `json:"occurs"` // YYYY-MM-DD of the next occurrence
	DaysOut   int    `json:"days_out"`
}

// Outcome describes how GetOrCompute produced its result.
type Outcome int

const (
	// Hit means the serialized entry was served from Redis.
	Hit Outcome = iota
	// Miss means the entry was computed and written back.
	Miss
	// Bypass means Redis was unavailable and the result was computed
	// directly without touching the cache.
	Bypass
)

// Store is the cache-aside layer for the recurring-date query. Keys embed
// the requesting principal and the current calendar date, so an entry
// written on day D is structurally unreachable on day D+1 even without
// eviction; the TTL (bounded under one day) is a second, independent
// bound.
type Store struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStore creates a cache [Store]. ttl is clamped under 24h so the TTL
// bound never outlasts the date-key rollover it backs up.
func NewStore(redisClient redis.UniversalClient, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = "bday"
	}
	if ttl <= 0 || ttl >= 24*time.Hour {
		ttl = time.Hour
	}
	return &Store{redis: redisClient, prefix: prefix, ttl: ttl}
}

// GetOrCompute serves the principal's result for day from Redis, or runs
// compute on a miss and writes the serialized result back with the
// configured TTL.
//
// Store failures are swallowed: a failed read degrades to computing
// directly, and a failed write-back still returns the computed result.
// The returned error is compute's alone.
func (s *Store) GetOrCompute(
	ctx context.Context,
	principal string,
	day time.Time,
	compute func(ctx context.Context) ([]Match, error),
) ([]Match, Outcome, error) {
	key := s.key(principal, day)

	data, err := s.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var matches []Match
		if jsonErr := json.Unmarshal(data, &matches); jsonErr == nil {
			return matches, Hit, nil
		}
		// Corrupt entry: fall through and recompute over it.
	case !errors.Is(err, redis.Nil):
		matches, computeErr := compute(ctx)
		if computeErr != nil {
			return nil, Bypass, computeErr
		}
		return matches, Bypass, nil
	}

	matches, err := compute(ctx)
	if err != nil {
		return nil, Miss, err
	}

	encoded, err := json.Marshal(matches)
	if err == nil {
		// Best effort: a failed write-back only costs the next request a
		// recompute.
		_ = s.redis.Set(ctx, key, encoded, s.ttl).Err()
	}

	return matches, Miss, nil
}

// Invalidate deletes the principal's entry for today only. Entries for
// other days are unreachable once the date changes, so deleting them
// would be wasted round-trips.
func (s *Store) Invalidate(ctx context.Context, principal string, today time.Time) error {
	if err := s.redis.Del(ctx, s.key(principal, today)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (s *Store) key(principal string, day time.Time) string {
	return s.prefix + ":" + principal + ":" + day.Format(dayKeyLayout)
}
