package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/example/comment-platform/internal/authz"
	"github.com/example/comment-platform/internal/engine"
	"github.com/example/comment-platform/internal/platform/api"
	"github.com/example/comment-platform/internal/platform/auth"
)

type commentContentRequest struct {
	Content string `json:"content"`
}

// ArticleComments handles GET /articles/{article_id}/comments
func ArticleComments(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		articleID := strings.TrimSpace(chi.URLParam(r, "article_id"))
		if articleID == "" {
			api.Error(w, http.StatusBadRequest, "article_id is required")
			return
		}

		count, nodes, err := eng.ArticleComments(r.Context(), articleID)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		if nodes == nil {
			nodes = []engine.Node{}
		}
		api.Success(w, http.StatusOK, map[string]any{"count": count, "comments": nodes})
	}
}

// CreateComment handles POST /articles/{article_id}/comments
func CreateComment(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			api.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := authz.Authorize(claims, authz.ScopePostComments, nil); err != nil {
			api.Error(w, http.StatusForbidden, err.Error())
			return
		}

		articleID := strings.TrimSpace(chi.URLParam(r, "article_id"))
		if articleID == "" {
			api.Error(w, http.StatusBadRequest, "article_id is required")
			return
		}
		content, err := decodeContent(w, r)
		if err != nil {
			return
		}

		c, err := eng.CreateTopLevel(r.Context(), articleID, claims.Subject, content)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		api.Success(w, http.StatusOK, map[string]any{"id": c.ID})
	}
}

// ListComments handles GET /comments
func ListComments(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := 1
		if p := strings.TrimSpace(r.URL.Query().Get("page")); p != "" {
			parsed, err := strconv.Atoi(p)
			if err != nil || parsed < 1 {
				api.Error(w, http.StatusBadRequest, "page must be a positive integer")
				return
			}
			page = parsed
		}

		nodes, err := eng.ListComments(r.Context(), page)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		api.Success(w, http.StatusOK, map[string]any{"comments": nodes})
	}
}

// GetComment handles GET /comments/{comment_id}. Tombstones report not
// found: position data is only visible through the article tree.
func GetComment(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := commentID(w, r)
		if !ok {
			return
		}
		node, err := eng.Get(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		api.Success(w, http.StatusOK, map[string]any{"comment": node})
	}
}

// CreateReply handles POST /comments/{comment_id}
func CreateReply(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			api.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if err := authz.Authorize(claims, authz.ScopePostComments, nil); err != nil {
			api.Error(w, http.StatusForbidden, err.Error())
			return
		}

		id, ok := commentID(w, r)
		if !ok {
			return
		}
		content, err := decodeContent(w, r)
		if err != nil {
			return
		}

		c, err := eng.CreateReply(r.Context(), id, claims.Subject, content)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		api.Success(w, http.StatusOK, map[string]any{"id": c.ID})
	}
}

// EditComment handles PATCH /comments/{comment_id}. Editing is for the
// comment's author; an admin grant overrides.
func EditComment(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			api.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id, ok := commentID(w, r)
		if !ok {
			return
		}

		author, err := eng.Author(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		err = authz.Authorize(claims, auth.ScopeAdmin, func(c *auth.Claims) bool {
			return author != "" && author == c.Subject
		})
		if err != nil {
			api.Error(w, http.StatusForbidden, err.Error())
			return
		}

		content, err := decodeContent(w, r)
		if err != nil {
			return
		}

		// The gate's ownership decision may be stale by now; the engine
		// re-checks it against the current row unless the caller holds
		// the elevated grant.
		if _, err := eng.Edit(r.Context(), id, content, claims.Subject,
			authz.Elevated(claims, auth.ScopeAdmin)); err != nil {
			writeEngineError(w, err)
			return
		}
		api.Success(w, http.StatusOK, map[string]any{"id": id})
	}
}

// DeleteComment handles DELETE /comments/{comment_id}
func DeleteComment(eng *engine.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.ClaimsFromContext(r.Context())
		if !ok {
			api.Error(w, http.StatusUnauthorized, "authentication required")
			return
		}
		id, ok := commentID(w, r)
		if !ok {
			return
		}

		author, err := eng.Author(r.Context(), id)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		err = authz.Authorize(claims, authz.ScopeDeleteComments, func(c *auth.Claims) bool {
			return author != "" && author == c.Subject
		})
		if err != nil {
			api.Error(w, http.StatusForbidden, err.Error())
			return
		}

		if _, err := eng.SoftDelete(r.Context(), id, claims.Subject,
			authz.Elevated(claims, authz.ScopeDeleteComments)); err != nil {
			writeEngineError(w, err)
			return
		}
		api.Success(w, http.StatusOK, map[string]any{"id": id})
	}
}

func commentID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := strings.TrimSpace(chi.URLParam(r, "comment_id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		api.Error(w, http.StatusBadRequest, "comment_id must be an integer")
		return 0, false
	}
	return id, true
}

func decodeContent(w http.ResponseWriter, r *http.Request) (string, error) {
	var req commentContentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid JSON")
		return "", err
	}
	if strings.TrimSpace(req.Content) == "" {
		api.Error(w, http.StatusBadRequest, "content must not be empty")
		return "", errEmptyContent
	}
	return req.Content, nil
}

var errEmptyContent = errors.New("content must not be empty")
