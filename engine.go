package contactguard

import (
	"context"
	"log/slog"
	"time"

	"github.com/okhrim/contactguard/cache"
	"github.com/okhrim/contactguard/ratelimit"
	"github.com/okhrim/contactguard/revocation"
	"github.com/okhrim/contactguard/token"
)

// Engine is the façade over the four components. It is immutable after
// [Builder.Build] and safe for concurrent use; all cross-request state
// lives in Redis.
type Engine struct {
	config     Config
	tokens     *token.Manager
	revocation *revocation.Store
	limiter    *ratelimit.Limiter
	birthdays  *cache.Store
	calendar   CalendarSource
	audit      *auditDispatcher
	metrics    *Metrics
	logger     *slog.Logger
}

// TokenPair is the access/refresh pair minted on login and refresh.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Close flushes the audit dispatcher. The Redis client is owned by the
// caller and is not closed here.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	e.audit.Close()
}

// MetricsSnapshot copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

// AuditDropped reports events lost to a saturated audit buffer.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.metrics.Get(MetricAuditDropped)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) auditEmit(ctx context.Context, event AuditEvent) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if event.ClientKey == "" {
		event.ClientKey = ClientKeyFromContext(ctx)
	}
	e.audit.Emit(ctx, event)
}

// storeCtx bounds one Redis round-trip. Every store call in the engine
// goes through it so an unresponsive store degrades the request instead
// of hanging it.
func (e *Engine) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.config.StoreTimeout)
}
