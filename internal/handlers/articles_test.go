package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

// ─── CreateArticle ────────────────────────────────────────────────────────────

func TestCreateArticle_OK(t *testing.T) {
	eng, st := newTestEngine(t)
	body, _ := json.Marshal(map[string]string{"id": "article-1"})
	req := asUser(jsonReq(http.MethodPost, "/articles", body, nil),
		"editor-1", "post:articles")
	rr := httptest.NewRecorder()
	CreateArticle(eng).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if _, err := st.GetArticle(context.Background(), "article-1"); err != nil {
		t.Fatalf("expected article persisted: %v", err)
	}
}

func TestCreateArticle_Idempotent(t *testing.T) {
	eng, _ := newTestEngine(t)
	body, _ := json.Marshal(map[string]string{"id": "article-1"})
	for i := 0; i < 2; i++ {
		req := asUser(jsonReq(http.MethodPost, "/articles", body, nil),
			"editor-1", "post:articles")
		rr := httptest.NewRecorder()
		CreateArticle(eng).ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("attempt %d: expected 200, got %d", i+1, rr.Code)
		}
	}
}

func TestCreateArticle_MissingScope(t *testing.T) {
	eng, _ := newTestEngine(t)
	body, _ := json.Marshal(map[string]string{"id": "article-1"})
	req := asUser(jsonReq(http.MethodPost, "/articles", body, nil),
		"user-1", "post:comments")
	rr := httptest.NewRecorder()
	CreateArticle(eng).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestCreateArticle_Unauthenticated(t *testing.T) {
	eng, _ := newTestEngine(t)
	body, _ := json.Marshal(map[string]string{"id": "article-1"})
	req := jsonReq(http.MethodPost, "/articles", body, nil)
	rr := httptest.NewRecorder()
	CreateArticle(eng).ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}

func TestCreateArticle_EmptyID(t *testing.T) {
	eng, _ := newTestEngine(t)
	body, _ := json.Marshal(map[string]string{"id": "  "})
	req := asUser(jsonReq(http.MethodPost, "/articles", body, nil),
		"editor-1", "post:articles")
	rr := httptest.NewRecorder()
	CreateArticle(eng).ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

// ─── DeleteArticle ────────────────────────────────────────────────────────────

func TestDeleteArticle_CascadesComments(t *testing.T) {
	eng, st := newTestEngine(t)
	id := seedComment(t, eng, "article-1", "user-1", "doomed")

	req := asUser(jsonReq(http.MethodDelete, "/articles/article-1", nil,
		map[string]string{"article_id": "article-1"}),
		"editor-1", "delete:articles")
	rr := httptest.NewRecorder()
	DeleteArticle(eng).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if _, err := st.GetArticle(context.Background(), "article-1"); err == nil {
		t.Fatal("expected article removed")
	}
	if _, err := eng.Get(context.Background(), id); err == nil {
		t.Fatal("expected comments removed with the article")
	}
}

func TestDeleteArticle_Missing(t *testing.T) {
	eng, _ := newTestEngine(t)
	req := asUser(jsonReq(http.MethodDelete, "/articles/ghost", nil,
		map[string]string{"article_id": "ghost"}),
		"editor-1", "delete:articles")
	rr := httptest.NewRecorder()
	DeleteArticle(eng).ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteArticle_MissingScope(t *testing.T) {
	eng, _ := newTestEngine(t)
	seedComment(t, eng, "article-1", "user-1", "safe")

	req := asUser(jsonReq(http.MethodDelete, "/articles/article-1", nil,
		map[string]string{"article_id": "article-1"}),
		"user-1", "post:comments", "post:articles")
	rr := httptest.NewRecorder()
	DeleteArticle(eng).ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

// ─── ListArticles ─────────────────────────────────────────────────────────────

func TestListArticles(t *testing.T) {
	eng, st := newTestEngine(t)
	for _, id := range []string{"a", "b"} {
		if err := eng.CreateArticle(context.Background(), id); err != nil {
			t.Fatal(err)
		}
	}

	req := jsonReq(http.MethodGet, "/articles", nil, nil)
	rr := httptest.NewRecorder()
	ListArticles(st).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	articles, ok := resp["articles"].([]any)
	if !ok || len(articles) != 2 {
		t.Fatalf("expected 2 articles, got %v", resp["articles"])
	}
}

func TestListArticles_Empty(t *testing.T) {
	_, st := newTestEngine(t)
	req := jsonReq(http.MethodGet, "/articles", nil, nil)
	rr := httptest.NewRecorder()
	ListArticles(st).ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	resp := decodeBody(t, rr)
	if _, ok := resp["articles"].([]any); !ok {
		t.Fatalf("expected empty array, not null: %v", resp["articles"])
	}
}
