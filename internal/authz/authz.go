// Package authz is the permission gate: it decides whether validated
// claims may perform a mutation, combining scope grants with an
// ownership fallback.
package authz

import (
	"errors"
	"fmt"

	"github.com/example/comment-platform/internal/platform/auth"
)

// Scopes the routes declare.
const (
	ScopePostComments   = "post:comments"
	ScopePostArticles   = "post:articles"
	ScopeDeleteArticles = "delete:articles"
	ScopeDeleteComments = "delete:comments"
)

// ErrForbidden is the root of every deny decision.
var ErrForbidden = errors.New("forbidden")

var (
	// ErrInsufficientScope denies a scope-only route.
	ErrInsufficientScope = fmt.Errorf("%w: token lacks the required scope", ErrForbidden)
	// ErrNotOwner denies a scope-or-ownership route where neither held.
	ErrNotOwner = fmt.Errorf("%w: insufficient scope and not the resource owner", ErrForbidden)
)

// Authorize allows when the claims grant scope, or failing that when
// the ownership predicate accepts the claims. The order is fixed: the
// scope check always runs first, and ownership is only consulted when
// a predicate is supplied. The two deny reasons stay distinguishable.
func Authorize(c *auth.Claims, scope string, owner func(*auth.Claims) bool) error {
	if scope != "" && c.HasScope(scope) {
		return nil
	}
	if owner != nil {
		if owner(c) {
			return nil
		}
		return ErrNotOwner
	}
	return ErrInsufficientScope
}

// Elevated reports whether claims would pass Authorize on scope alone,
// without the ownership fallback. The engine uses this to know when it
// must re-validate ownership itself.
func Elevated(c *auth.Claims, scope string) bool {
	return scope != "" && c.HasScope(scope)
}
