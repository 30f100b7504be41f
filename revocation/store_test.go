package revocation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "rvk"), mr
}

func TestRevokeThenIsRevoked(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	if err := store.Revoke(ctx, "some.refresh.token", time.Hour); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	revoked, err := store.IsRevoked(ctx, "some.refresh.token")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("expected token to be revoked")
	}

	other, err := store.IsRevoked(ctx, "some.other.token")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if other {
		t.Fatal("unrelated token reported revoked")
	}
}

func TestEntryExpiresWithTokenLifetime(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Revoke(ctx, "tok", 30*time.Minute); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	mr.FastForward(29 * time.Minute)
	revoked, err := store.IsRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("entry expired before the token's natural lifetime")
	}

	mr.FastForward(2 * time.Minute)
	revoked, err = store.IsRevoked(ctx, "tok")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if revoked {
		t.Fatal("entry outlived the token it protects")
	}
}

func TestRevokeExpiredTokenIsNoOp(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()

	if err := store.Revoke(ctx, "stale", -time.Second); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if err := store.Revoke(ctx, "stale2", 0); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}
	if got := len(mr.Keys()); got != 0 {
		t.Fatalf("expected no keys written, got %d", got)
	}
}

func TestRevokeIsIdempotent(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := store.Revoke(ctx, "again", time.Hour); err != nil {
			t.Fatalf("Revoke #%d failed: %v", i+1, err)
		}
	}
	revoked, err := store.IsRevoked(ctx, "again")
	if err != nil {
		t.Fatalf("IsRevoked failed: %v", err)
	}
	if !revoked {
		t.Fatal("expected token to stay revoked")
	}
}

func TestStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	ctx := context.Background()
	mr.Close()

	if err := store.Revoke(ctx, "tok", time.Hour); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Revoke error = %v, want ErrRedisUnavailable", err)
	}
	if _, err := store.IsRevoked(ctx, "tok"); !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("IsRevoked error = %v, want ErrRedisUnavailable", err)
	}
}
