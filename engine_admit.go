package contactguard

import (
	"context"

	"github.com/okhrim/contactguard/ratelimit"
)

// Admit runs the distributed admission check for one client/route pair.
// It never returns an error for a healthy store: rejection is expressed
// through the Decision so callers build the retry-later response from
// RetryAfter. Store outages are absorbed by the configured policy and
// logged; the decision still comes back.
func (e *Engine) Admit(ctx context.Context, clientKey, route string) (ratelimit.Decision, error) {
	if e == nil {
		return ratelimit.Decision{}, ErrEngineNotReady
	}
	if !e.config.RateLimit.Enabled {
		return ratelimit.Decision{Allowed: true}, nil
	}

	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	decision, err := e.limiter.Admit(sctx, clientKey, route)
	if err != nil {
		// Policy already resolved the decision; the error is only for
		// observability.
		e.metricInc(MetricAdmitDegraded)
		e.logger.Warn("rate limiter degraded",
			"route", route,
			"allowed", decision.Allowed,
			"error", err,
		)
		e.auditEmit(ctx, AuditEvent{
			EventType: AuditRateDegraded,
			ClientKey: clientKey,
			Success:   decision.Allowed,
			Metadata:  map[string]string{"route": route},
		})
		return decision, nil
	}

	if decision.Allowed {
		e.metricInc(MetricAdmitAllowed)
		return decision, nil
	}

	e.metricInc(MetricAdmitRejected)
	e.auditEmit(ctx, AuditEvent{
		EventType: AuditRateRejected,
		ClientKey: clientKey,
		Success:   false,
		Metadata:  map[string]string{"route": route},
	})

	return decision, nil
}
