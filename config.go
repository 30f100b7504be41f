package contactguard

import (
	"errors"
	"time"
)

// FailurePolicy selects how a Redis-backed control behaves when the
// store is unreachable: fail-open permits the action, fail-closed
// denies it.
type FailurePolicy int

const (
	// FailOpen permits the guarded action during store outages.
	FailOpen FailurePolicy = iota
	// FailClosed denies the guarded action during store outages.
	FailClosed
)

// Config wires the four components. Zero values are filled in by
// [DefaultConfig]; [Builder.Build] validates the result.
type Config struct {
	Token      TokenConfig
	Revocation RevocationConfig
	RateLimit  RateLimitConfig
	Cache      CacheConfig
	Audit      AuditConfig

	// StoreTimeout bounds every Redis round-trip made by the engine so a
	// slow store degrades a request instead of hanging it.
	StoreTimeout time.Duration
}

// TokenConfig holds per-purpose TTLs and the three independent signing
// secrets. Secrets come from process configuration and are never logged.
type TokenConfig struct {
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	EmailTTL   time.Duration

	AccessSecret  []byte
	RefreshSecret []byte
	EmailSecret   []byte

	Issuer string
	Leeway time.Duration
}

// RevocationConfig controls the logout-time denylist.
type RevocationConfig struct {
	RedisPrefix string
	// CheckAccess additionally consults the denylist on every
	// access-token verification, not just refresh use. Defense in depth
	// at the cost of one Redis read per request.
	CheckAccess bool
	// Policy applies when the denylist store is unreachable. The default
	// is FailClosed: an unverifiable revocation status rejects the token.
	Policy FailurePolicy
}

// RateLimitConfig controls distributed admission.
type RateLimitConfig struct {
	Enabled     bool
	Ceiling     int
	Window      time.Duration
	RedisPrefix string
	// Policy applies when the counter store is unreachable. The default
	// is FailOpen with a warning log: availability is preferred over
	// strict enforcement for this control.
	Policy FailurePolicy
}

// CacheConfig controls the upcoming-birthdays cache.
type CacheConfig struct {
	RedisPrefix string
	// TTL must stay under 24h; the date-embedded key is the primary
	// staleness bound and the TTL the secondary one.
	TTL        time.Duration
	WindowDays int
}

// AuditConfig controls asynchronous audit event dispatch.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the request path when
	// the buffer is saturated.
	DropIfFull bool
}

// DefaultConfig returns the defaults used by the Contacts API
// deployment. Secrets are intentionally absent and must be supplied.
func DefaultConfig() Config {
	return Config{
		Token: TokenConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 7 * 24 * time.Hour,
			EmailTTL:   24 * time.Hour,
			Issuer:     "contactguard",
		},
		Revocation: RevocationConfig{
			RedisPrefix: "rvk",
			Policy:      FailClosed,
		},
		RateLimit: RateLimitConfig{
			Enabled:     true,
			Ceiling:     10,
			Window:      time.Minute,
			RedisPrefix: "rl",
			Policy:      FailOpen,
		},
		Cache: CacheConfig{
			RedisPrefix: "bday",
			TTL:         time.Hour,
			WindowDays:  7,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		StoreTimeout: 500 * time.Millisecond,
	}
}

func validateConfig(cfg Config) error {
	if len(cfg.Token.AccessSecret) == 0 ||
		len(cfg.Token.RefreshSecret) == 0 ||
		len(cfg.Token.EmailSecret) == 0 {
		return errors.New("all three token secrets must be configured")
	}
	if cfg.Token.AccessTTL <= 0 || cfg.Token.RefreshTTL <= 0 || cfg.Token.EmailTTL <= 0 {
		return errors.New("token TTLs must be positive")
	}
	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.Ceiling <= 0 {
			return errors.New("rate limit ceiling must be positive")
		}
		if cfg.RateLimit.Window <= 0 {
			return errors.New("rate limit window must be positive")
		}
	}
	if cfg.Cache.TTL <= 0 || cfg.Cache.TTL >= 24*time.Hour {
		return errors.New("cache TTL must be positive and under 24h")
	}
	if cfg.Cache.WindowDays < 0 {
		return errors.New("cache window days must not be negative")
	}
	if cfg.StoreTimeout <= 0 {
		return errors.New("store timeout must be positive")
	}
	return nil
}
