package contactguard

import (
	"context"
	"errors"
	"time"

	"github.com/okhrim/contactguard/token"
)

// IssuePair mints an access/refresh pair for subject. The request
// pipeline calls this after the credential check on login and register.
func (e *Engine) IssuePair(ctx context.Context, subject string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	access, err := e.tokens.Issue(subject, token.PurposeAccess, e.config.Token.AccessTTL)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := e.tokens.Issue(subject, token.PurposeRefresh, e.config.Token.RefreshTTL)
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricTokenIssued)
	e.auditEmit(ctx, AuditEvent{EventType: AuditTokenIssued, Subject: subject, Success: true})

	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueEmailToken mints the token embedded in a verification link.
func (e *Engine) IssueEmailToken(ctx context.Context, subject string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	tok, err := e.tokens.Issue(subject, token.PurposeEmailVerify, e.config.Token.EmailTTL)
	if err != nil {
		return "", err
	}

	e.metricInc(MetricTokenIssued)
	e.auditEmit(ctx, AuditEvent{EventType: AuditTokenIssued, Subject: subject, Success: true,
		Metadata: map[string]string{"purpose": string(token.PurposeEmailVerify)}})

	return tok, nil
}

// Authenticate verifies an access token and returns its subject. With
// Revocation.CheckAccess enabled it also consults the denylist.
//
// All failures wrap [ErrInvalidCredential]; the specific cause stays
// reachable through errors.Is for metrics and logs but must not be
// echoed to HTTP clients.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(accessToken, token.PurposeAccess)
	if err != nil {
		return "", e.authFailure(ctx, "", err)
	}

	if e.config.Revocation.CheckAccess {
		if err := e.rejectIfRevoked(ctx, accessToken); err != nil {
			return "", e.authFailure(ctx, claims.Subject, err)
		}
	}

	e.metricInc(MetricAuthSuccess)
	return claims.Subject, nil
}

// ConfirmEmailToken verifies an email-verification token and returns the
// subject whose address it confirms.
func (e *Engine) ConfirmEmailToken(ctx context.Context, emailToken string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(emailToken, token.PurposeEmailVerify)
	if err != nil {
		return "", e.authFailure(ctx, "", err)
	}

	e.auditEmit(ctx, AuditEvent{EventType: AuditEmailVerified, Subject: claims.Subject, Success: true})
	return claims.Subject, nil
}

// Refresh exchanges a refresh token for a fresh pair. The presented
// token is revoked for its remaining lifetime, so each refresh token is
// single-use and replaying one after rotation fails.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil {
		return TokenPair{}, ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(refreshToken, token.PurposeRefresh)
	if err != nil {
		return TokenPair{}, e.authFailure(ctx, "", err)
	}

	if err := e.rejectIfRevoked(ctx, refreshToken); err != nil {
		return TokenPair{}, e.authFailure(ctx, claims.Subject, err)
	}

	remaining := token.RemainingTTL(claims, time.Now())
	if err := e.revokeWithPolicy(ctx, refreshToken, remaining); err != nil {
		return TokenPair{}, e.authFailure(ctx, claims.Subject, err)
	}

	pair, err := e.IssuePair(ctx, claims.Subject)
	if err != nil {
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.auditEmit(ctx, AuditEvent{EventType: AuditTokenRefresh, Subject: claims.Subject, Success: true})

	return pair, nil
}

// Logout revokes the refresh token for exactly its remaining lifetime.
// Expired or garbage tokens are a successful no-op: there is nothing
// left to revoke, and logout must not fail the user for it.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	claims, err := e.tokens.Verify(refreshToken, token.PurposeRefresh)
	if err != nil {
		return nil
	}

	remaining := token.RemainingTTL(claims, time.Now())
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()
	if err := e.revocation.Revoke(sctx, refreshToken, remaining); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}

	e.metricInc(MetricLogout)
	e.auditEmit(ctx, AuditEvent{EventType: AuditTokenRevoked, Subject: claims.Subject, Success: true})

	return nil
}

// rejectIfRevoked consults the denylist, resolving store outages by the
// configured revocation policy.
func (e *Engine) rejectIfRevoked(ctx context.Context, tokenStr string) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	revoked, err := e.revocation.IsRevoked(sctx, tokenStr)
	if err != nil {
		if e.config.Revocation.Policy == FailOpen {
			e.logger.Warn("revocation check degraded to fail-open", "error", err)
			return nil
		}
		return errors.Join(ErrStoreUnavailable, err)
	}
	if revoked {
		return ErrRevoked
	}
	return nil
}

// revokeWithPolicy writes a denylist entry, resolving store outages by
// the configured revocation policy.
func (e *Engine) revokeWithPolicy(ctx context.Context, tokenStr string, remaining time.Duration) error {
	sctx, cancel := e.storeCtx(ctx)
	defer cancel()

	if err := e.revocation.Revoke(sctx, tokenStr, remaining); err != nil {
		if e.config.Revocation.Policy == FailOpen {
			e.logger.Warn("revocation write degraded to fail-open", "error", err)
			return nil
		}
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

// authFailure counts, audits, and collapses a verification failure. The
// returned error wraps both [ErrInvalidCredential] and the cause.
func (e *Engine) authFailure(ctx context.Context, subject string, cause error) error {
	switch {
	case errors.Is(cause, token.ErrInvalidSignature):
		e.metricInc(MetricAuthInvalidSignature)
	case errors.Is(cause, token.ErrWrongPurpose):
		e.metricInc(MetricAuthWrongPurpose)
	case errors.Is(cause, token.ErrExpired):
		e.metricInc(MetricAuthExpired)
	case errors.Is(cause, ErrRevoked):
		e.metricInc(MetricAuthRevoked)
	}

	e.auditEmit(ctx, AuditEvent{
		EventType: AuditAuthDenied,
		Subject:   subject,
		Success:   false,
		Error:     cause.Error(),
	})

	return errors.Join(ErrInvalidCredential, cause)
}
