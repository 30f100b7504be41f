package contactguard

import "context"

type clientKeyContextKey struct{}

// WithClientKey attaches the caller's rate-limit identity (usually the
// source IP) to ctx. The middleware sets it; audit events pick it up.
func WithClientKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, clientKeyContextKey{}, key)
}

// ClientKeyFromContext returns the identity set by [WithClientKey].
func ClientKeyFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	key, _ := ctx.Value(clientKeyContextKey{}).(string)
	return key
}
