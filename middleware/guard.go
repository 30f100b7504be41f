// Package middleware adapts the contactguard core to net/http request
// pipelines. The adapters are deliberately framework-free; routers that
// accept func(http.Handler) http.Handler can mount them directly.
package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	contactguard "github.com/okhrim/contactguard"
)

type subjectContextKey struct{}

// SubjectFromContext returns the authenticated principal set by [Guard].
func SubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectContextKey{}).(string)
	return subject, ok
}

// Guard authenticates the Bearer access token on every request. Any
// failure, whether bad signature, wrong purpose, expiry, or revocation,
// produces the same generic 401 so the response never reveals which
// check rejected the credential.
func Guard(engine *contactguard.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				unauthorized(w)
				return
			}

			tok, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				unauthorized(w)
				return
			}

			subject, err := engine.Authenticate(r.Context(), tok)
			if err != nil {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), subjectContextKey{}, subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RateLimit runs the admission check before the handler. Rejections get
// 429 with a Retry-After hint in whole seconds, rounded up so clients
// never retry inside the same window.
func RateLimit(engine *contactguard.Engine, route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				next.ServeHTTP(w, r)
				return
			}

			clientKey := clientAddr(r)
			ctx := contactguard.WithClientKey(r.Context(), clientKey)

			decision, err := engine.Admit(ctx, clientKey, route)
			if err != nil || !decision.Allowed {
				seconds := int(math.Ceil(decision.RetryAfter.Seconds()))
				if seconds < 1 {
					seconds = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				http.Error(w, "rate limit exceeded, retry later", http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	http.Error(w, "invalid credentials", http.StatusUnauthorized)
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}
	token := value[len(bearer):]
	if token == "" {
		return "", false
	}
	return token, true
}

func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
