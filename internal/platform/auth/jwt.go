package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/example/comment-platform/internal/platform/api"
)

type ctxKeyClaims struct{}

// ClaimsFromContext returns the claims RequireUser injected, if any.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	v, ok := ctx.Value(ctxKeyClaims{}).(*Claims)
	return v, ok
}

// WithClaims injects claims into context. Useful for testing.
func WithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, ctxKeyClaims{}, c)
}

// Claims is the validated token payload: a subject plus the permission
// scopes granted to it.
type Claims struct {
	jwt.RegisteredClaims
	Permissions []string `json:"permissions"`
}

// Recognized elevated grants.
const (
	ScopeWildcard = "*"
	ScopeAdmin    = "admin"
)

// HasScope reports whether the claims grant the named scope. A wildcard
// or admin grant satisfies every scope.
func (c *Claims) HasScope(scope string) bool {
	if c == nil {
		return false
	}
	for _, p := range c.Permissions {
		switch p {
		case scope, ScopeWildcard, ScopeAdmin:
			return true
		}
	}
	return false
}

type Verifier struct {
	Secret []byte
}

func (v Verifier) Parse(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, errors.New("unexpected signing method")
		}
		return v.Secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// RequireUser middleware validates the Bearer token and injects the
// claims into context. Scope checks happen later, at the handlers.
func RequireUser(verifier Verifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := strings.TrimSpace(r.Header.Get("Authorization"))
			if authz == "" {
				api.Error(w, http.StatusUnauthorized, "authorization header is required")
				return
			}
			parts := strings.SplitN(authz, " ", 2)
			if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
				api.Error(w, http.StatusUnauthorized, "authorization header must be a bearer token")
				return
			}
			claims, err := verifier.Parse(strings.TrimSpace(parts[1]))
			if err != nil || strings.TrimSpace(claims.Subject) == "" {
				api.Error(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}
