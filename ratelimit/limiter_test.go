package ratelimit

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return New(rdb, cfg), mr
}

func TestExactlyCeilingAdmissionsPerWindow(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{Ceiling: 5, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		decision, err := limiter.Admit(ctx, "10.0.0.1", "contacts")
		if err != nil {
			t.Fatalf("Admit #%d failed: %v", i+1, err)
		}
		if !decision.Allowed {
			t.Fatalf("admission #%d rejected below ceiling", i+1)
		}
		if decision.Remaining != 5-(i+1) {
			t.Fatalf("remaining = %d after admission #%d, want %d", decision.Remaining, i+1, 5-(i+1))
		}
	}

	decision, err := limiter.Admit(ctx, "10.0.0.1", "contacts")
	if err != nil {
		t.Fatalf("Admit #6 failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("admission above ceiling allowed")
	}
	if decision.RetryAfter <= 0 || decision.RetryAfter > time.Minute {
		t.Fatalf("retry-after = %v, want within (0, window]", decision.RetryAfter)
	}
	if !errors.Is(decision.Err(), ErrRateLimited) {
		t.Fatalf("Err() = %v, want ErrRateLimited", decision.Err())
	}
}

func TestRejectionsDoNotDriftCounter(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{Ceiling: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if _, err := limiter.Admit(ctx, "10.0.0.2", "contacts"); err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
	}

	stored, err := mr.Get("rl:contacts:10.0.0.2")
	if err != nil {
		t.Fatalf("counter key missing: %v", err)
	}
	count, err := strconv.Atoi(stored)
	if err != nil {
		t.Fatalf("counter not numeric: %v", err)
	}
	if count != 3 {
		t.Fatalf("counter = %d after rejections, want 3 (no drift)", count)
	}
}

func TestWindowRolloverAdmitsAgain(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{Ceiling: 2, Window: 30 * time.Second})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := limiter.Admit(ctx, "10.0.0.3", "contacts"); err != nil {
			t.Fatalf("Admit failed: %v", err)
		}
	}
	decision, err := limiter.Admit(ctx, "10.0.0.3", "contacts")
	if err != nil {
		t.Fatalf("Admit failed: %v", err)
	}
	if decision.Allowed {
		t.Fatal("expected rejection at ceiling")
	}

	mr.FastForward(31 * time.Second)

	decision, err = limiter.Admit(ctx, "10.0.0.3", "contacts")
	if err != nil {
		t.Fatalf("Admit after rollover failed: %v", err)
	}
	if !decision.Allowed {
		t.Fatal("expected admission after window rollover")
	}
}

func TestKeysIsolateClientsAndRoutes(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{Ceiling: 1, Window: time.Minute})
	ctx := context.Background()

	if d, _ := limiter.Admit(ctx, "a", "contacts"); !d.Allowed {
		t.Fatal("first admission rejected")
	}
	if d, _ := limiter.Admit(ctx, "a", "contacts"); d.Allowed {
		t.Fatal("second admission for same key allowed")
	}
	if d, _ := limiter.Admit(ctx, "b", "contacts"); !d.Allowed {
		t.Fatal("different client throttled by a's counter")
	}
	if d, _ := limiter.Admit(ctx, "a", "birthdays"); !d.Allowed {
		t.Fatal("different route throttled by contacts counter")
	}
}

func TestConcurrentAdmissionsRespectCeiling(t *testing.T) {
	limiter, _ := newTestLimiter(t, Config{Ceiling: 20, Window: time.Minute})
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			decision, err := limiter.Admit(ctx, "10.0.0.4", "contacts")
			if err != nil {
				t.Errorf("Admit failed: %v", err)
				return
			}
			if decision.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if allowed != 20 {
		t.Fatalf("allowed = %d, want exactly 20", allowed)
	}
}

func TestFailOpenPolicy(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{Ceiling: 1, Window: time.Minute, Policy: FailOpen})
	ctx := context.Background()
	mr.Close()

	decision, err := limiter.Admit(ctx, "10.0.0.5", "contacts")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Admit error = %v, want ErrRedisUnavailable", err)
	}
	if !decision.Allowed || !decision.FailedOpen {
		t.Fatalf("decision = %+v, want allowed via fail-open", decision)
	}
}

func TestFailClosedPolicy(t *testing.T) {
	limiter, mr := newTestLimiter(t, Config{Ceiling: 1, Window: time.Minute, Policy: FailClosed})
	ctx := context.Background()
	mr.Close()

	decision, err := limiter.Admit(ctx, "10.0.0.6", "contacts")
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("Admit error = %v, want ErrRedisUnavailable", err)
	}
	if decision.Allowed {
		t.Fatalf("decision = %+v, want rejected via fail-closed", decision)
	}
	if decision.RetryAfter != time.Minute {
		t.Fatalf("retry-after = %v, want full window", decision.RetryAfter)
	}
}
