package contactguard

import (
	"context"
	"errors"
	"log/slog"

	"github.com/okhrim/contactguard/cache"
	"github.com/okhrim/contactguard/internal/logging"
	"github.com/okhrim/contactguard/ratelimit"
	"github.com/okhrim/contactguard/revocation"
	"github.com/okhrim/contactguard/token"
	"github.com/redis/go-redis/v9"
)

// CalendarSource is the injected persistence collaborator behind the
// birthday cache. Upcoming must be a pure read with no side effects.
type CalendarSource interface {
	Upcoming(ctx context.Context, principal string, windowDays int) ([]cache.Match, error)
}

// Builder assembles an [Engine]. Construction is allocation-only; no
// Redis round-trips happen until the first Engine call.
type Builder struct {
	config   Config
	redis    redis.UniversalClient
	calendar CalendarSource
	sink     AuditSink
	logger   *slog.Logger
}

// New returns a [Builder] preloaded with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the shared key-value store handle used by revocation,
// rate limiting, and the cache. Injected explicitly so tests can
// substitute miniredis.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithCalendarSource sets the persistence collaborator behind the
// birthday cache.
func (b *Builder) WithCalendarSource(src CalendarSource) *Builder {
	b.calendar = src
	return b
}

// WithAuditSink sets the audit event destination.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithLogger sets the slog logger. Defaults to a JSON logger at info.
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and wires the four components around
// the shared Redis handle.
func (b *Builder) Build() (*Engine, error) {
	if err := validateConfig(b.config); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}

	tokens, err := token.NewManager(token.Config{
		Secrets: map[token.Purpose][]byte{
			token.PurposeAccess:      b.config.Token.AccessSecret,
			token.PurposeRefresh:     b.config.Token.RefreshSecret,
			token.PurposeEmailVerify: b.config.Token.EmailSecret,
		},
		Issuer: b.config.Token.Issuer,
		Leeway: b.config.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	limiterPolicy := ratelimit.FailOpen
	if b.config.RateLimit.Policy == FailClosed {
		limiterPolicy = ratelimit.FailClosed
	}

	logger := b.logger
	if logger == nil {
		logger = logging.New("info")
	}

	metrics := NewMetrics()

	return &Engine{
		config:     b.config,
		tokens:     tokens,
		revocation: revocation.NewStore(b.redis, b.config.Revocation.RedisPrefix),
		limiter: ratelimit.New(b.redis, ratelimit.Config{
			Ceiling: b.config.RateLimit.Ceiling,
			Window:  b.config.RateLimit.Window,
			Policy:  limiterPolicy,
			Prefix:  b.config.RateLimit.RedisPrefix,
		}),
		birthdays: cache.NewStore(b.redis, b.config.Cache.RedisPrefix, b.config.Cache.TTL),
		calendar:  b.calendar,
		audit: newAuditDispatcher(b.config.Audit, b.sink, func() {
			metrics.Inc(MetricAuditDropped)
		}),
		metrics: metrics,
		logger:  logger,
	}, nil
}
