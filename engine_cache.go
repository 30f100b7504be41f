package contactguard

import (
	"context"
	"time"

	"github.com/okhrim/contactguard/cache"
)

// UpcomingDates serves the principal's upcoming-birthdays query through
// the cache-aside layer. The underlying computation runs at most once
// per principal per day until the entry expires or is invalidated; if
// the cache store is down the query runs directly and the request still
// succeeds.
func (e *Engine) UpcomingDates(ctx context.Context, principal string) ([]cache.Match, error) {
	return e.upcomingOn(ctx, principal, time.Now())
}

// InvalidateUpcoming deletes the principal's cache entry for today.
// Called on any contact write that could change the query result.
func (e *Engine) InvalidateUpcoming(ctx context.Context, principal string) error {
	return e.invalidateOn(ctx, principal, time.Now())
}

func (e *Engine) upcomingOn(ctx context.Context, principal string, day time.Time) ([]cache.Match, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	if e.calendar == nil {
		return nil, ErrNoCalendarSource
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	matches, outcome, err := e.birthdays.GetOrCompute(sctx, principal, day,
		func(context.Context) ([]cache.Match, error) {
			// The computation itself runs under the caller's context, not
			// the store deadline.
			return e.calendar.Upcoming(ctx, principal, e.config.Cache.WindowDays)
		})
	if err != nil {
		return nil, err
	}

	switch outcome {
	case cache.Hit:
		e.metricInc(MetricCacheHit)
	case cache.Miss:
		e.metricInc(MetricCacheMiss)
	case cache.Bypass:
		e.metricInc(MetricCacheBypass)
		e.logger.Warn("birthday cache degraded to pass-through", "principal", principal)
		e.auditEmit(ctx, AuditEvent{EventType: AuditCacheDegraded, Subject: principal, Success: true})
	}

	return matches, nil
}

func (e *Engine) invalidateOn(ctx context.Context, principal string, day time.Time) error {
	if e == nil {
		return ErrEngineNotReady
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.birthdays.Invalidate(sctx, principal, day); err != nil {
		return err
	}
	e.metricInc(MetricCacheInvalidation)
	return nil
}
