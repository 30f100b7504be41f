package contactguard

import "errors"

var (
	// ErrInvalidCredential is the single authentication failure exposed to
	// transport callers. Signature, purpose, expiry, and revocation
	// failures all collapse into it so responses never leak which check
	// failed; errors.Is still reaches the wrapped cause for logs and
	// metrics.
	ErrInvalidCredential = errors.New("invalid credential")
	// ErrRevoked is returned when a presented refresh token sits on the
	// revocation list.
	ErrRevoked = errors.New("token revoked")
	// ErrStoreUnavailable wraps Redis failures that could not be recovered
	// by a component's degradation policy.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEngineNotReady is returned when an Engine method is called on a
	// nil or unbuilt engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrNoCalendarSource is returned by UpcomingDates when no
	// CalendarSource was injected.
	ErrNoCalendarSource = errors.New("no calendar source configured")
)
