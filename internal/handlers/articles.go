package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/comment-platform/internal/authz"
	"github.com/example/comment-platform/internal/engine"
	"github.com/example/comment-platform/internal/platform/api"
	"github.com/example/comment-platform/internal/platform/auth"
	"github.com/example/comment-platform/internal/store"
)

type createArticleRequest struct {
	ID string `json:"id"`
}

// ListArticles handles GET /articles
func ListArticles(st store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		articles, err := st.ListArticles(r.Context())
		if err != nil {
			api.Error(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if articles == nil {
			articles = []store.Article{}
		}
		api.Success(w, http.StatusOK, map[string]any{"articles": articles})
	}
}

// CreateArticle handles POST /articles
func CreateArticle(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			api.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := authz.Authorize(claims, authz.ScopePostArticles, nil); err != nil {
			api.Error(w, http.StatusForbidden, err.Error())
			return
		}

		var req createArticleRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, "invalid JSON")
			return
		}
		id := strings.TrimSpace(req.ID)
		if id == "" {
			api.Error(w, http.StatusBadRequest, "id must not be empty")
			return
		}

		if err := eng.CreateArticle(r.Context(), id); err != nil {
			writeEngineError(w, err)
			return
		}
		api.Success(w, http.StatusOK, map[string]any{"id": id})
	}
}

// DeleteArticle handles DELETE /articles/{article_id}
func DeleteArticle(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			api.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := authz.Authorize(claims, authz.ScopeDeleteArticles, nil); err != nil {
			api.Error(w, http.StatusForbidden, err.Error())
			return
		}

		id := strings.TrimSpace(chi.URLParam(r, "article_id"))
		if id == "" {
			api.Error(w, http.StatusBadRequest, "article_id is required")
			return
		}

		if err := eng.DeleteArticle(r.Context(), id); err != nil {
			writeEngineError(w, err)
			return
		}
		api.Success(w, http.StatusOK, map[string]any{"id": id})
	}
}
