package store

import (
	"context"
	"errors"
	"time"
)

// Article is a content identifier comments attach to. The id is an
// externally assigned slug.
type Article struct {
	ID string `json:"id"`
}

// User mirrors the identity provider's subject. Picture may be empty.
type User struct {
	ID       string `json:"id"`
	Nickname string `json:"nickname"`
	Picture  string `json:"picture"`
}

// Comment is a single row of the comment forest. Parent is nil for
// top-level comments. A tombstoned row (Removed=true) has nil User and
// Content but keeps its place in the tree for its descendants.
type Comment struct {
	ID       int64     `json:"id"`
	Article  string    `json:"article"`
	Parent   *int64    `json:"parent"`
	User     *string   `json:"user,omitempty"`
	Content  *string   `json:"content,omitempty"`
	Datetime time.Time `json:"datetime"`
	Removed  bool      `json:"removed"`
}

// ErrNotFound reports that a referenced entity is absent.
var ErrNotFound = errors.New("entity not found")

// Store is the persistence contract the engine runs against. Every
// mutation entry point goes through InTx so a multi-step operation is
// atomic: the callback either commits as a whole or leaves no trace.
type Store interface {
	// Articles
	CreateArticle(ctx context.Context, id string) error // idempotent
	GetArticle(ctx context.Context, id string) (Article, error)
	DeleteArticle(ctx context.Context, id string) error
	ListArticles(ctx context.Context) ([]Article, error)

	// Users
	UpsertUser(ctx context.Context, u User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	// Comments
	InsertComment(ctx context.Context, c Comment) (Comment, error)
	GetComment(ctx context.Context, id int64) (Comment, error)
	// LockComment reads a comment and, inside a transaction, locks its
	// row until commit. Outside a transaction it behaves like GetComment.
	LockComment(ctx context.Context, id int64) (Comment, error)
	UpdateComment(ctx context.Context, c Comment) error
	DeleteComment(ctx context.Context, id int64) error
	HasReplies(ctx context.Context, id int64) (bool, error)
	CommentsByArticle(ctx context.Context, articleID string) ([]Comment, error)
	DeleteArticleComments(ctx context.Context, articleID string) error
	ListLiveComments(ctx context.Context, limit, offset int) ([]Comment, error)

	// InTx runs fn against a transactional view of the store. Returning
	// an error rolls back everything fn did.
	InTx(ctx context.Context, fn func(Store) error) error
}
