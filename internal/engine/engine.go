// Package engine implements the comment tree operations: creation,
// editing, recursive read shaping and the tombstone/cascade-purge
// deletion algorithm. Every mutation runs as one store transaction, so
// a failed cascade leaves the tree exactly as it was.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/comment-platform/internal/events"
	"github.com/example/comment-platform/internal/store"
)

// Sentinel errors the HTTP layer maps onto status codes.
var (
	ErrNotFound      = errors.New("not found")
	ErrUnprocessable = errors.New("unprocessable")
	ErrForbidden     = errors.New("forbidden")
)

// PageSize is the page length of the flat comment listing.
const PageSize = 20

type Engine struct {
	store  store.Store
	events *events.Publisher
	log    *zap.Logger
	clock  func() time.Time
}

func New(st store.Store, ev *events.Publisher, log *zap.Logger) *Engine {
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{
		store:  st,
		events: ev,
		log:    log,
		clock:  func() time.Time { return time.Now().UTC() },
	}
}

// CreateTopLevel posts a new root comment under an article.
func (e *Engine) CreateTopLevel(ctx context.Context, articleID, author, content string) (store.Comment, error) {
	var out store.Comment
	err := e.mutate(ctx, func(tx store.Store) error {
		if _, err := tx.GetArticle(ctx, articleID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: article %q", ErrNotFound, articleID)
			}
			return err
		}
		c, err := tx.InsertComment(ctx, store.Comment{
			Article:  articleID,
			User:     &author,
			Content:  &content,
			Datetime: e.clock(),
		})
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return store.Comment{}, err
	}
	e.events.Publish(events.SubjectCommentCreated, "comment_created", author,
		map[string]any{"comment_id": out.ID, "article": articleID})
	return out, nil
}

// CreateReply posts a reply under an existing comment. Replying to a
// tombstoned comment is disallowed.
func (e *Engine) CreateReply(ctx context.Context, parentID int64, author, content string) (store.Comment, error) {
	var out store.Comment
	err := e.mutate(ctx, func(tx store.Store) error {
		parent, err := tx.LockComment(ctx, parentID)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: comment %d", ErrNotFound, parentID)
		}
		if err != nil {
			return err
		}
		if parent.Removed {
			return fmt.Errorf("%w: cannot reply to a removed comment", ErrUnprocessable)
		}
		c, err := tx.InsertComment(ctx, store.Comment{
			Article:  parent.Article,
			Parent:   &parent.ID,
			User:     &author,
			Content:  &content,
			Datetime: e.clock(),
		})
		if err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return store.Comment{}, err
	}
	e.events.Publish(events.SubjectCommentCreated, "comment_created", author,
		map[string]any{"comment_id": out.ID, "article": out.Article, "parent": parentID})
	return out, nil
}

// Edit replaces a live comment's content. The creation timestamp is
// untouched. When the caller was authorized by ownership rather than
// scope, ownership is re-checked here against the current row.
func (e *Engine) Edit(ctx context.Context, id int64, content, requester string, elevated bool) (store.Comment, error) {
	var out store.Comment
	err := e.mutate(ctx, func(tx store.Store) error {
		c, err := tx.LockComment(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: comment %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if c.Removed {
			return fmt.Errorf("%w: cannot edit a removed comment", ErrUnprocessable)
		}
		if !elevated && (c.User == nil || *c.User != requester) {
			return fmt.Errorf("%w: requester is not the comment author", ErrForbidden)
		}
		c.Content = &content
		if err := tx.UpdateComment(ctx, c); err != nil {
			return err
		}
		out = c
		return nil
	})
	if err != nil {
		return store.Comment{}, err
	}
	e.events.Publish(events.SubjectCommentEdited, "comment_edited", requester,
		map[string]any{"comment_id": id})
	return out, nil
}

// SoftDelete removes a comment. A comment that still has children
// becomes a tombstone so the tree shape survives; a childless comment
// is deleted outright, after which childless tombstoned ancestors are
// purged upward until a live or still-parenting ancestor is reached.
//
// Ownership is checked against the live user field, so a tombstone has
// no owner and can only be deleted with an elevated scope.
func (e *Engine) SoftDelete(ctx context.Context, id int64, requester string, elevated bool) (int64, error) {
	err := e.mutate(ctx, func(tx store.Store) error {
		c, err := tx.LockComment(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: comment %d", ErrNotFound, id)
		}
		if err != nil {
			return err
		}
		if c.Removed {
			return fmt.Errorf("%w: comment %d is already removed", ErrUnprocessable, id)
		}
		if !elevated && (c.User == nil || *c.User != requester) {
			return fmt.Errorf("%w: requester is not the comment author", ErrForbidden)
		}

		has, err := tx.HasReplies(ctx, c.ID)
		if err != nil {
			return err
		}
		if has {
			// Descendants still reference this comment: keep the slot.
			c.Removed = true
			c.User = nil
			c.Content = nil
			return tx.UpdateComment(ctx, c)
		}
		if err := tx.DeleteComment(ctx, c.ID); err != nil {
			return err
		}
		return purgeAncestors(ctx, tx, c.Parent)
	})
	if err != nil {
		return 0, err
	}
	e.events.Publish(events.SubjectCommentRemoved, "comment_removed", requester,
		map[string]any{"comment_id": id})
	return id, nil
}

// purgeAncestors deletes tombstoned ancestors that have just lost their
// last child, walking upward until a live ancestor, an ancestor with
// other children, or the root.
func purgeAncestors(ctx context.Context, tx store.Store, parent *int64) error {
	if parent == nil {
		return nil
	}
	p, err := tx.LockComment(ctx, *parent)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !p.Removed {
		return nil
	}
	has, err := tx.HasReplies(ctx, p.ID)
	if err != nil {
		return err
	}
	if has {
		return nil
	}
	if err := tx.DeleteComment(ctx, p.ID); err != nil {
		return err
	}
	return purgeAncestors(ctx, tx, p.Parent)
}

// Get returns a single formatted comment. Tombstones are not
// individually addressable and report not found.
func (e *Engine) Get(ctx context.Context, id int64) (Node, error) {
	c, err := e.store.GetComment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return Node{}, fmt.Errorf("%w: comment %d", ErrNotFound, id)
	}
	if err != nil {
		return Node{}, err
	}
	if c.Removed {
		return Node{}, fmt.Errorf("%w: comment %d", ErrNotFound, id)
	}
	return format(c), nil
}

// Author returns the author of a comment for ownership checks. A
// tombstone has no author, so the empty string never matches a subject.
func (e *Engine) Author(ctx context.Context, id int64) (string, error) {
	c, err := e.store.GetComment(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%w: comment %d", ErrNotFound, id)
	}
	if err != nil {
		return "", err
	}
	if c.Removed || c.User == nil {
		return "", nil
	}
	return *c.User, nil
}

// ArticleComments returns the article's comment forest, top-level
// comments and replies ordered by creation time, plus the number of
// live comments. Tombstones stay in the tree but are not counted.
func (e *Engine) ArticleComments(ctx context.Context, articleID string) (int, []Node, error) {
	rows, err := e.store.CommentsByArticle(ctx, articleID)
	if err != nil {
		return 0, nil, err
	}
	live := 0
	for _, c := range rows {
		if !c.Removed {
			live++
		}
	}
	return live, buildForest(rows), nil
}

// ListComments returns one page of the flat, cross-article listing of
// live comments, ordered by creation time. Pages are 1-indexed and an
// out-of-range page yields an empty sequence.
func (e *Engine) ListComments(ctx context.Context, page int) ([]Node, error) {
	if page < 1 {
		return []Node{}, nil
	}
	rows, err := e.store.ListLiveComments(ctx, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	out := make([]Node, 0, len(rows))
	for _, c := range rows {
		out = append(out, format(c))
	}
	return out, nil
}

// CreateArticle registers an article id. Re-creating an existing
// article succeeds without modification.
func (e *Engine) CreateArticle(ctx context.Context, id string) error {
	return e.mutate(ctx, func(tx store.Store) error {
		return tx.CreateArticle(ctx, id)
	})
}

// DeleteArticle removes an article and hard-deletes every comment
// attached to it. Unlike comment deletion there is no tombstoning: the
// whole forest goes with the article, in the same transaction.
func (e *Engine) DeleteArticle(ctx context.Context, id string) error {
	err := e.mutate(ctx, func(tx store.Store) error {
		if _, err := tx.GetArticle(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return fmt.Errorf("%w: article %q", ErrNotFound, id)
			}
			return err
		}
		if err := tx.DeleteArticleComments(ctx, id); err != nil {
			return err
		}
		return tx.DeleteArticle(ctx, id)
	})
	if err != nil {
		return err
	}
	e.events.Publish(events.SubjectArticleDeleted, "article_deleted", "",
		map[string]any{"article": id})
	return nil
}

// mutate runs fn in one transaction. Domain errors pass through;
// anything else is a persistence failure, which after rollback reports
// as unprocessable rather than leaking store internals.
func (e *Engine) mutate(ctx context.Context, fn func(store.Store) error) error {
	err := e.store.InTx(ctx, fn)
	if err == nil || isDomainErr(err) {
		return err
	}
	e.log.Error("persistence failure, transaction rolled back", zap.Error(err))
	return fmt.Errorf("%w: operation could not be persisted", ErrUnprocessable)
}

func isDomainErr(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnprocessable) ||
		errors.Is(err, ErrForbidden)
}
