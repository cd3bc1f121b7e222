package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/example/comment-platform/internal/authz"
	"github.com/example/comment-platform/internal/platform/api"
	"github.com/example/comment-platform/internal/platform/auth"
	"github.com/example/comment-platform/internal/store"
)

// ListUsers handles GET /users
func ListUsers(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		users, err := st.ListUsers(r.Context())
		if err != nil {
			api.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if users == nil {
			users = []store.User{}
		}
		api.Success(w, http.StatusOK, map[string]any{"users": users})
	}
}

// UpsertUser handles POST /users. A profile can only be written by the
// subject it belongs to; there is no scope that overrides this.
func UpsertUser(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			api.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}

		var u store.User
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&u); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		u.ID = strings.TrimSpace(u.ID)
		if u.ID == "" {
			api.Error(w, http.StatusBadRequest, "id must not be empty")
			return
		}

		err := authz.Authorize(claims, "", func(c *auth.Claims) bool {
			return u.ID == c.Subject
		})
		if err != nil {
			api.Error(w, http.StatusForbidden, err.Error())
			return
		}

		saved, err := st.UpsertUser(r.Context(), u)
		if err != nil {
			api.Error(w, http.StatusUnprocessableEntity, "profile could not be saved")
			return
		}
		api.Success(w, http.StatusOK, map[string]any{"id": saved.ID})
	}
}
