// Package auth verifies the bearer JWTs the REST and gRPC transports
// extract from incoming requests and carries the resulting caller
// identity through context.Context for controlplane.Service to enforce
// ownership against.
package auth

import (
	"context"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AdminRole is the one role the access-control checks across the module
// treat specially: a caller carrying it bypasses ownership checks.
const AdminRole = "admin"

// Principal is the caller identity recovered from a verified token.
type Principal struct {
	UserID string
	Roles  []string
}

// HasRole reports whether the principal carries role.
func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the principal may act on behalf of any user.
func (p Principal) IsAdmin() bool {
	return p.HasRole(AdminRole)
}

type claims struct {
	UserID string   `json:"userId"`
	Roles  []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Verifier checks bearer tokens against a single HMAC signing key and
// (when configured) an expected issuer.
type Verifier struct {
	signingKey []byte
	issuer     string
}

// NewVerifier builds a Verifier from the control plane's security config.
// An empty signingKey is an error: there is no anonymous-access mode.
func NewVerifier(signingKey, issuer string) (*Verifier, error) {
	if signingKey == "" {
		return nil, errors.New("jwt signing key is required")
	}
	return &Verifier{signingKey: []byte(signingKey), issuer: issuer}, nil
}

// Verify parses and validates tokenString, returning the Principal it
// asserts. Expiry and signature are checked by ParseWithClaims; the
// userId claim and (if configured) the issuer are checked after it.
func (v *Verifier) Verify(tokenString string) (*Principal, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return v.signingKey, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}

	c, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid {
		return nil, jwt.ErrTokenInvalidClaims
	}
	if c.UserID == "" {
		return nil, errors.New("token is missing userId claim")
	}
	if v.issuer != "" && c.Issuer != v.issuer {
		return nil, jwt.ErrTokenInvalidIssuer
	}

	return &Principal{UserID: c.UserID, Roles: c.Roles}, nil
}

// Issue mints a signed token for principal, used by tests and by any
// out-of-band service that needs to hand a caller a session token.
func (v *Verifier) Issue(userID string, roles []string, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		UserID: userID,
		Roles:  roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	return token.SignedString(v.signingKey)
}

type contextKey struct{}

// WithPrincipal returns a context carrying p, read back by FromContext.
func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext recovers the Principal a transport's auth middleware
// attached to ctx, if any.
func FromContext(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(*Principal)
	return p, ok
}
