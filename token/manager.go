package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose restricts the contexts in which a signed token may be accepted.
type Purpose string

const (
	// PurposeAccess marks short-lived API credentials.
	PurposeAccess Purpose = "access"
	// PurposeRefresh marks tokens exchanged for new pairs.
	PurposeRefresh Purpose = "refresh"
	// PurposeEmailVerify marks tokens embedded in confirmation links.
	PurposeEmailVerify Purpose = "email_verify"
)

var (
	// ErrInvalidSignature is returned when the signature does not verify
	// under the secret registered for the expected purpose.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrWrongPurpose is returned when the embedded purpose claim does not
	// match the purpose the verifier requires.
	ErrWrongPurpose = errors.New("token purpose mismatch")
	// ErrExpired is returned when the token is past its expiry.
	ErrExpired = errors.New("token expired")
	// ErrUnknownPurpose is returned when no secret is registered for a purpose.
	ErrUnknownPurpose = errors.New("unknown token purpose")
)

// Config holds the per-purpose signing secrets and parser options.
// Each purpose signs with its own independent secret; a token minted for
// one purpose never verifies under another purpose's secret.
type Config struct {
	Secrets map[Purpose][]byte
	Issuer  string
	Leeway  time.Duration
}

// Claims is the signed payload carried by every token.
type Claims struct {
	Purpose Purpose `json:"pur"`
	jwt.RegisteredClaims
}

// Manager issues and verifies purpose-tagged HS256 tokens.
type Manager struct {
	config Config
}

// NewManager validates the secret set and returns a [Manager]. All three
// purposes must have a non-empty secret.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	for _, p := range []Purpose{PurposeAccess, PurposeRefresh, PurposeEmailVerify} {
		if len(cfg.Secrets[p]) == 0 {
			return nil, fmt.Errorf("missing secret for purpose %q", p)
		}
	}
	return &Manager{config: cfg}, nil
}

// Issue mints a signed token for subject with the given purpose and ttl.
// The JTI claim is a fresh UUID so that two otherwise identical tokens
// remain distinguishable to the revocation list.
func (m *Manager) Issue(subject string, purpose Purpose, ttl time.Duration) (string, error) {
	secret, ok := m.config.Secrets[purpose]
	if !ok || len(secret) == 0 {
		return "", ErrUnknownPurpose
	}

	now := time.Now()
	// exp is marshaled at one-second precision, which truncates downward.
	// Round it up to the next whole second so the signed expiry never
	// precedes issued_at+ttl.
	exp := now.Add(ttl)
	if trunc := exp.Truncate(time.Second); exp.After(trunc) {
		exp = trunc.Add(time.Second)
	}
	claims := Claims{
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			Issuer:    m.config.Issuer,
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// Verify checks tokenStr against the secret registered for expectedPurpose
// and returns the embedded claims.
//
// Checks run in order: signature, purpose, expiry. The purpose claim is
// compared even though each purpose has its own secret: if two purposes
// were ever misconfigured to share a secret, the claim check still rejects
// cross-purpose replay.
func (m *Manager) Verify(tokenStr string, expectedPurpose Purpose) (*Claims, error) {
	secret, ok := m.config.Secrets[expectedPurpose]
	if !ok || len(secret) == 0 {
		return nil, ErrUnknownPurpose
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		claims, _ := claimsOf(parsed)
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			// Purpose mismatch outranks expiry: an expired token minted for
			// another channel must still surface as a purpose violation.
			if claims != nil && claims.Purpose != expectedPurpose {
				return nil, ErrWrongPurpose
			}
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid),
			errors.Is(err, jwt.ErrTokenUnverifiable),
			errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrInvalidSignature
		default:
			return nil, fmt.Errorf("%w: %v", ErrInvalidSignature, err)
		}
	}

	claims, ok2 := parsed.Claims.(*Claims)
	if !ok2 || !parsed.Valid {
		return nil, ErrInvalidSignature
	}
	if claims.Purpose != expectedPurpose {
		return nil, ErrWrongPurpose
	}

	return claims, nil
}

// RemainingTTL reports how long the token's claims stay valid from now.
// Zero or negative means already expired.
func RemainingTTL(claims *Claims, now time.Time) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Time.Sub(now)
}

func claimsOf(t *jwt.Token) (*Claims, bool) {
	if t == nil {
		return nil, false
	}
	claims, ok := t.Claims.(*Claims)
	return claims, ok
}
