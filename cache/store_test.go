package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T, ttl time.Duration) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewStore(rdb, "bday", ttl), mr
}

func countingCompute(calls *int, matches []Match) func(context.Context) ([]Match, error) {
	return func(context.Context) ([]Match, error) {
		*calls++
		return matches, nil
	}
}

func TestComputeOncePerPrincipalPerDay(t *testing.T) {
	store, _ := newTestCache(t, time.Hour)
	ctx := context.Background()
	day := date(2025, time.December, 28)

	want := []Match{{ContactID: "c1", Name: "Olena", Occurs: "2025-12-30", DaysOut: 2}}

	var calls int
	for i := 0; i < 5; i++ {
		got, outcome, err := store.GetOrCompute(ctx, "user-1", day, countingCompute(&calls, want))
		if err != nil {
			t.Fatalf("GetOrCompute #%d failed: %v", i+1, err)
		}
		wantOutcome := Hit
		if i == 0 {
			wantOutcome = Miss
		}
		if outcome != wantOutcome {
			t.Fatalf("outcome #%d = %v, want %v", i+1, outcome, wantOutcome)
		}
		if len(got) != 1 || got[0] != want[0] {
			t.Fatalf("result #%d = %+v, want %+v", i+1, got, want)
		}
	}
	if calls != 1 {
		t.Fatalf("compute called %d times, want 1", calls)
	}
}

func TestPrincipalsDoNotShareEntries(t *testing.T) {
	store, _ := newTestCache(t, time.Hour)
	ctx := context.Background()
	day := date(2025, time.December, 28)

	var calls1, calls2 int
	if _, _, err := store.GetOrCompute(ctx, "user-1", day, countingCompute(&calls1, nil)); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if _, _, err := store.GetOrCompute(ctx, "user-2", day, countingCompute(&calls2, nil)); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if calls1 != 1 || calls2 != 1 {
		t.Fatalf("calls = (%d, %d), want (1, 1)", calls1, calls2)
	}
}

func TestDateRolloverMakesEntryUnreachable(t *testing.T) {
	// TTL is deliberately long; the key's embedded date alone must keep
	// day D's entry out of day D+1's reads.
	store, _ := newTestCache(t, 23*time.Hour)
	ctx := context.Background()

	var calls int
	dayD := date(2025, time.December, 28)
	if _, _, err := store.GetOrCompute(ctx, "user-1", dayD, countingCompute(&calls, nil)); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}

	dayD1 := dayD.AddDate(0, 0, 1)
	_, outcome, err := store.GetOrCompute(ctx, "user-1", dayD1, countingCompute(&calls, nil))
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if outcome != Miss {
		t.Fatalf("outcome on day D+1 = %v, want Miss", outcome)
	}
	if calls != 2 {
		t.Fatalf("compute called %d times, want 2", calls)
	}
}

func TestTTLExpiryForcesRecompute(t *testing.T) {
	store, mr := newTestCache(t, 10*time.Minute)
	ctx := context.Background()
	day := date(2025, time.December, 28)

	var calls int
	if _, _, err := store.GetOrCompute(ctx, "user-1", day, countingCompute(&calls, nil)); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}

	mr.FastForward(11 * time.Minute)

	_, outcome, err := store.GetOrCompute(ctx, "user-1", day, countingCompute(&calls, nil))
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if outcome != Miss || calls != 2 {
		t.Fatalf("outcome = %v, calls = %d; want Miss and 2", outcome, calls)
	}
}

func TestInvalidateDeletesTodayOnly(t *testing.T) {
	store, mr := newTestCache(t, time.Hour)
	ctx := context.Background()

	today := date(2025, time.December, 28)
	yesterday := today.AddDate(0, 0, -1)

	var calls int
	if _, _, err := store.GetOrCompute(ctx, "user-1", yesterday, countingCompute(&calls, nil)); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if _, _, err := store.GetOrCompute(ctx, "user-1", today, countingCompute(&calls, nil)); err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}

	if err := store.Invalidate(ctx, "user-1", today); err != nil {
		t.Fatalf("Invalidate failed: %v", err)
	}

	if mr.Exists("bday:user-1:2025-12-28") {
		t.Fatal("today's entry survived invalidation")
	}
	if !mr.Exists("bday:user-1:2025-12-27") {
		t.Fatal("other-day entry should be left alone")
	}

	_, outcome, err := store.GetOrCompute(ctx, "user-1", today, countingCompute(&calls, nil))
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if outcome != Miss {
		t.Fatalf("outcome after invalidation = %v, want Miss", outcome)
	}
}

func TestStoreFailureDegradesToPassThrough(t *testing.T) {
	store, mr := newTestCache(t, time.Hour)
	ctx := context.Background()
	day := date(2025, time.December, 28)
	mr.Close()

	want := []Match{{ContactID: "c7", Occurs: "2025-12-29", DaysOut: 1}}
	var calls int

	for i := 0; i < 2; i++ {
		got, outcome, err := store.GetOrCompute(ctx, "user-1", day, countingCompute(&calls, want))
		if err != nil {
			t.Fatalf("GetOrCompute must not surface store errors, got %v", err)
		}
		if outcome != Bypass {
			t.Fatalf("outcome = %v, want Bypass", outcome)
		}
		if len(got) != 1 || got[0] != want[0] {
			t.Fatalf("result = %+v, want %+v", got, want)
		}
	}
	if calls != 2 {
		t.Fatalf("compute called %d times, want 2 (no caching while degraded)", calls)
	}
}

func TestComputeErrorPropagates(t *testing.T) {
	store, _ := newTestCache(t, time.Hour)
	ctx := context.Background()
	day := date(2025, time.December, 28)

	wantErr := errors.New("persistence down")
	_, _, err := store.GetOrCompute(ctx, "user-1", day, func(context.Context) ([]Match, error) {
		return nil, wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("error = %v, want %v", err, wantErr)
	}
}

func TestCorruptEntryRecomputed(t *testing.T) {
	store, mr := newTestCache(t, time.Hour)
	ctx := context.Background()
	day := date(2025, time.December, 28)

	if err := mr.Set("bday:user-1:2025-12-28", "{not json"); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	var calls int
	_, outcome, err := store.GetOrCompute(ctx, "user-1", day, countingCompute(&calls, nil))
	if err != nil {
		t.Fatalf("GetOrCompute failed: %v", err)
	}
	if outcome != Miss || calls != 1 {
		t.Fatalf("outcome = %v, calls = %d; want Miss and 1", outcome, calls)
	}
}

func TestInvalidateUnavailable(t *testing.T) {
	store, mr := newTestCache(t, time.Hour)
	mr.Close()

	err := store.Invalidate(context.Background(), "user-1", date(2025, time.December, 28))
	if !errors.Is(err, ErrRedisUnavailable) {
		t.Fatalf("error = %v, want ErrRedisUnavailable", err)
	}
}
