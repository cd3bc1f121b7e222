package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// memState holds the raw tables. Methods on memState assume the caller
// already holds the owning store's lock.
type memState struct {
	articles map[string]Article
	users    map[string]User
	comments map[int64]Comment
	nextID   int64
}

func newMemState() *memState {
	return &memState{
		articles: make(map[string]Article),
		users:    make(map[string]User),
		comments: make(map[int64]Comment),
		nextID:   1,
	}
}

func (st *memState) clone() *memState {
	out := newMemState()
	out.nextID = st.nextID
	for k, v := range st.articles {
		out.articles[k] = v
	}
	for k, v := range st.users {
		out.users[k] = v
	}
	for k, v := range st.comments {
		out.comments[k] = v
	}
	return out
}

// MemoryStore is a development and test backend. A single mutex
// serializes all access; InTx works copy-on-write so a failed
// transaction leaves the published state untouched.
type MemoryStore struct {
	mu    sync.Mutex
	state *memState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemState()}
}

func (s *MemoryStore) CreateArticle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.createArticle(id)
}

func (s *MemoryStore) GetArticle(_ context.Context, id string) (Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getArticle(id)
}

func (s *MemoryStore) DeleteArticle(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.deleteArticle(id)
}

func (s *MemoryStore) ListArticles(_ context.Context) ([]Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listArticles()
}

func (s *MemoryStore) UpsertUser(_ context.Context, u User) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.upsertUser(u)
}

func (s *MemoryStore) GetUser(_ context.Context, id string) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getUser(id)
}

func (s *MemoryStore) ListUsers(_ context.Context) ([]User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listUsers()
}

func (s *MemoryStore) InsertComment(_ context.Context, c Comment) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.insertComment(c)
}

func (s *MemoryStore) GetComment(_ context.Context, id int64) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getComment(id)
}

func (s *MemoryStore) LockComment(_ context.Context, id int64) (Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.getComment(id)
}

func (s *MemoryStore) UpdateComment(_ context.Context, c Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.updateComment(c)
}

func (s *MemoryStore) DeleteComment(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.deleteComment(id)
}

func (s *MemoryStore) HasReplies(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.hasReplies(id)
}

func (s *MemoryStore) CommentsByArticle(_ context.Context, articleID string) ([]Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.commentsByArticle(articleID)
}

func (s *MemoryStore) DeleteArticleComments(_ context.Context, articleID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.deleteArticleComments(articleID)
}

func (s *MemoryStore) ListLiveComments(_ context.Context, limit, offset int) ([]Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.listLiveComments(limit, offset)
}

// InTx clones the state, runs fn against the clone and publishes the
// clone only on success. The lock is held for the whole transaction,
// which serializes racing cascades the way row locks do in Postgres.
func (s *MemoryStore) InTx(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	shadow := s.state.clone()
	if err := fn(&memTx{state: shadow}); err != nil {
		return err
	}
	s.state = shadow
	return nil
}

// memTx is the unlocked transactional view handed to InTx callbacks.
type memTx struct {
	state *memState
}

func (t *memTx) CreateArticle(_ context.Context, id string) error { return t.state.createArticle(id) }
func (t *memTx) GetArticle(_ context.Context, id string) (Article, error) {
	return t.state.getArticle(id)
}
func (t *memTx) DeleteArticle(_ context.Context, id string) error { return t.state.deleteArticle(id) }
func (t *memTx) ListArticles(_ context.Context) ([]Article, error) {
	return t.state.listArticles()
}
func (t *memTx) UpsertUser(_ context.Context, u User) (User, error) { return t.state.upsertUser(u) }
func (t *memTx) GetUser(_ context.Context, id string) (User, error) { return t.state.getUser(id) }
func (t *memTx) ListUsers(_ context.Context) ([]User, error)        { return t.state.listUsers() }
func (t *memTx) InsertComment(_ context.Context, c Comment) (Comment, error) {
	return t.state.insertComment(c)
}
func (t *memTx) GetComment(_ context.Context, id int64) (Comment, error) {
	return t.state.getComment(id)
}
func (t *memTx) LockComment(_ context.Context, id int64) (Comment, error) {
	return t.state.getComment(id)
}
func (t *memTx) UpdateComment(_ context.Context, c Comment) error { return t.state.updateComment(c) }
func (t *memTx) DeleteComment(_ context.Context, id int64) error  { return t.state.deleteComment(id) }
func (t *memTx) HasReplies(_ context.Context, id int64) (bool, error) {
	return t.state.hasReplies(id)
}
func (t *memTx) CommentsByArticle(_ context.Context, articleID string) ([]Comment, error) {
	return t.state.commentsByArticle(articleID)
}
func (t *memTx) DeleteArticleComments(_ context.Context, articleID string) error {
	return t.state.deleteArticleComments(articleID)
}
func (t *memTx) ListLiveComments(_ context.Context, limit, offset int) ([]Comment, error) {
	return t.state.listLiveComments(limit, offset)
}

// InTx on a transactional view just runs fn in the enclosing transaction.
func (t *memTx) InTx(_ context.Context, fn func(Store) error) error { return fn(t) }

// ─── state operations ────────────────────────────────────────────────────────

func (st *memState) createArticle(id string) error {
	if _, ok := st.articles[id]; ok {
		return nil
	}
	st.articles[id] = Article{ID: id}
	return nil
}

func (st *memState) getArticle(id string) (Article, error) {
	a, ok := st.articles[id]
	if !ok {
		return Article{}, ErrNotFound
	}
	return a, nil
}

func (st *memState) deleteArticle(id string) error {
	if _, ok := st.articles[id]; !ok {
		return ErrNotFound
	}
	delete(st.articles, id)
	return nil
}

func (st *memState) listArticles() ([]Article, error) {
	out := make([]Article, 0, len(st.articles))
	for _, a := range st.articles {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *memState) upsertUser(u User) (User, error) {
	st.users[u.ID] = u
	return u, nil
}

func (st *memState) getUser(id string) (User, error) {
	u, ok := st.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (st *memState) listUsers() ([]User, error) {
	out := make([]User, 0, len(st.users))
	for _, u := range st.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (st *memState) insertComment(c Comment) (Comment, error) {
	c.ID = st.nextID
	st.nextID++
	if c.Datetime.IsZero() {
		c.Datetime = time.Now().UTC()
	}
	st.comments[c.ID] = c
	return c, nil
}

func (st *memState) getComment(id int64) (Comment, error) {
	c, ok := st.comments[id]
	if !ok {
		return Comment{}, ErrNotFound
	}
	return c, nil
}

func (st *memState) updateComment(c Comment) error {
	if _, ok := st.comments[c.ID]; !ok {
		return ErrNotFound
	}
	st.comments[c.ID] = c
	return nil
}

func (st *memState) deleteComment(id int64) error {
	if _, ok := st.comments[id]; !ok {
		return ErrNotFound
	}
	delete(st.comments, id)
	return nil
}

func (st *memState) hasReplies(id int64) (bool, error) {
	for _, c := range st.comments {
		if c.Parent != nil && *c.Parent == id {
			return true, nil
		}
	}
	return false, nil
}

func (st *memState) commentsByArticle(articleID string) ([]Comment, error) {
	var out []Comment
	for _, c := range st.comments {
		if c.Article == articleID {
			out = append(out, c)
		}
	}
	sortComments(out)
	return out, nil
}

func (st *memState) deleteArticleComments(articleID string) error {
	for id, c := range st.comments {
		if c.Article == articleID {
			delete(st.comments, id)
		}
	}
	return nil
}

func (st *memState) listLiveComments(limit, offset int) ([]Comment, error) {
	var out []Comment
	for _, c := range st.comments {
		if !c.Removed {
			out = append(out, c)
		}
	}
	sortComments(out)
	if offset >= len(out) {
		return []Comment{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// sortComments orders by datetime ascending, id as tiebreak since
// timestamps are not necessarily unique.
func sortComments(cs []Comment) {
	sort.Slice(cs, func(i, j int) bool {
		if !cs[i].Datetime.Equal(cs[j].Datetime) {
			return cs[i].Datetime.Before(cs[j].Datetime)
		}
		return cs[i].ID < cs[j].ID
	})
}

var _ Store = (*MemoryStore)(nil)
var _ Store = (*memTx)(nil)
