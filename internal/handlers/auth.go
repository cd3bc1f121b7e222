package handlers

import (
	"net/http"

	"github.com/example/comment-platform/internal/platform/api"
	"github.com/example/comment-platform/internal/platform/auth"
)

// VerifyToken handles POST /auth. The RequireUser middleware has
// already validated the credential; any authenticated caller passes.
func VerifyToken() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := auth.ClaimsFromContext(r.Context()); !ok {
			api.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		api.Success(w, http.StatusOK, nil)
	}
}
