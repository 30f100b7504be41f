package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrRateLimited is returned by [Decision.Err] for a denied decision.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps Redis transport failures. When Admit
	// returns it, the Decision already reflects the configured
	// [FailurePolicy]; the error is informational.
	ErrRedisUnavailable = errors.New("rate limiter redis unavailable")
)

// FailurePolicy selects how admission behaves when Redis is unreachable.
type FailurePolicy int

const (
	// FailOpen admits requests when the counter store is unavailable.
	// Availability is preferred over strict enforcement for this control.
	FailOpen FailurePolicy = iota
	// FailClosed rejects requests when the counter store is unavailable.
	FailClosed
)

// Config holds fixed-window tuning parameters.
type Config struct {
	Ceiling int
	Window  time.Duration
	Policy  FailurePolicy
	Prefix  string
}

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
	// FailedOpen is set when Allowed came from the failure policy rather
	// than the counter.
	FailedOpen bool
}

// Err converts a denial into [ErrRateLimited] for callers that prefer
// error-style control flow over inspecting the Decision.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return fmt.Errorf("%w: retry after %s", ErrRateLimited, d.RetryAfter)
}

// admitScript checks the counter against the ceiling before incrementing,
// so concurrent rejected requests never inflate the count past the
// ceiling. The window TTL is set only on the first hit; PTTL keeps the
// reset atomic with respect to concurrent increments.
//
// KEYS[1] = counter key
// ARGV[1] = ceiling
// ARGV[2] = window in milliseconds
//
// Returns {allowed, count, pttl_ms}.
var admitScript = redis.NewScript(`
local ceiling = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= ceiling then
  local ttl = redis.call('PTTL', KEYS[1])
  if ttl < 0 then
    ttl = window
  end
  return {0, current, ttl}
end

local count = redis.call('INCR', KEYS[1])
if count == 1 then
  redis.call('PEXPIRE', KEYS[1], window)
end
local ttl = redis.call('PTTL', KEYS[1])
return {1, count, ttl}
`)

// Limiter enforces a per-key fixed-window ceiling using Redis counters.
// Window reset happens implicitly through key expiry, so there is no
// reset path to race against.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.Prefix == "" {
		cfg.Prefix = "rl"
	}
	return &Limiter{redis: redisClient, config: cfg}
}

// Admit records one admission attempt for the client/route pair within
// the current window. Exactly Ceiling admissions succeed per window;
// every further attempt in that window is rejected without touching the
// counter.
//
// On Redis failure the Decision follows the configured [FailurePolicy]
// and the returned error wraps [ErrRedisUnavailable] so the caller can
// log the degradation.
func (l *Limiter) Admit(ctx context.Context, clientKey, route string) (Decision, error) {
	key := l.key(clientKey, route)

	result, err := admitScript.Run(ctx, l.redis, []string{key},
		l.config.Ceiling, l.config.Window.Milliseconds()).Result()
	if err != nil {
		return l.policyDecision(), fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	parts, ok := result.([]interface{})
	if !ok || len(parts) != 3 {
		return l.policyDecision(), fmt.Errorf("%w: invalid admit script response", ErrRedisUnavailable)
	}
	allowed, ok1 := parts[0].(int64)
	count, ok2 := parts[1].(int64)
	pttl, ok3 := parts[2].(int64)
	if !ok1 || !ok2 || !ok3 {
		return l.policyDecision(), fmt.Errorf("%w: invalid admit script values", ErrRedisUnavailable)
	}

	remaining := l.config.Ceiling - int(count)
	if remaining < 0 {
		remaining = 0
	}

	decision := Decision{
		Allowed:   allowed == 1,
		Remaining: remaining,
	}
	if !decision.Allowed {
		decision.RetryAfter = time.Duration(pttl) * time.Millisecond
	}

	return decision, nil
}

func (l *Limiter) policyDecision() Decision {
	if l.config.Policy == FailOpen {
		return Decision{Allowed: true, FailedOpen: true}
	}
	return Decision{Allowed: false, RetryAfter: l.config.Window}
}

func (l *Limiter) key(clientKey, route string) string {
	return l.config.Prefix + ":" + route + ":" + clientKey
}
