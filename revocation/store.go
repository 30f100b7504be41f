package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRedisUnavailable wraps any Redis transport failure so callers can
// apply their fail-open or fail-closed policy with errors.Is.
var ErrRedisUnavailable = errors.New("revocation redis unavailable")

const revokedSentinel = "1"

// Store records revoked refresh tokens in Redis until their natural
// expiry. Entries are keyed by a SHA-256 of the token string so the
// denylist never persists a usable credential.
//
// The entry TTL equals the token's remaining lifetime at revocation
// time: never longer (the entry must not outlive the token it protects)
// and never shorter (a revoked token must not become valid again).
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

// NewStore creates a revocation [Store] backed by the given Redis client.
// prefix sets the Redis key namespace.
func NewStore(redisClient redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = "rvk"
	}
	return &Store{redis: redisClient, prefix: prefix}
}

// Revoke writes the denylist entry with exactly remaining as its TTL.
// A non-positive remaining is a no-op: the token is already expired and
// needs no entry.
func (s *Store) Revoke(ctx context.Context, tokenStr string, remaining time.Duration) error {
	if remaining <= 0 {
		return nil
	}

	if err := s.redis.Set(ctx, s.key(tokenStr), revokedSentinel, remaining).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// IsRevoked reports whether the token has a live denylist entry.
func (s *Store) IsRevoked(ctx context.Context, tokenStr string) (bool, error) {
	err := s.redis.Get(ctx, s.key(tokenStr)).Err()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return true, nil
}

func (s *Store) key(tokenStr string) string {
	sum := sha256.Sum256([]byte(tokenStr))
	return s.prefix + ":" + hex.EncodeToString(sum[:])
}
