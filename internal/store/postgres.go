package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// querier is the part of pgxpool.Pool and pgx.Tx the store needs, so the
// same statements run inside and outside a transaction.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists the comment forest in Postgres.
type PostgresStore struct {
	pool *pgxpool.Pool
	q    querier
}

// NewPostgresStore creates a store backed by the given pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool, q: pool}
}

func (s *PostgresStore) CreateArticle(ctx context.Context, id string) error {
	// Idempotent: re-creating an existing article is a no-op.
	_, err := s.q.Exec(ctx,
		`INSERT INTO articles (id) VALUES ($1) ON CONFLICT (id) DO NOTHING`, id)
	return err
}

func (s *PostgresStore) GetArticle(ctx context.Context, id string) (Article, error) {
	var a Article
	err := s.q.QueryRow(ctx, `SELECT id FROM articles WHERE id = $1`, id).Scan(&a.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Article{}, ErrNotFound
	}
	return a, err
}

func (s *PostgresStore) DeleteArticle(ctx context.Context, id string) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM articles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListArticles(ctx context.Context) ([]Article, error) {
	rows, err := s.q.Query(ctx, `SELECT id FROM articles ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Article
	for rows.Next() {
		var a Article
		if err := rows.Scan(&a.ID); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) UpsertUser(ctx context.Context, u User) (User, error) {
	const q = `INSERT INTO users (id, nickname, picture) VALUES ($1, $2, $3)
	           ON CONFLICT (id) DO UPDATE SET nickname = EXCLUDED.nickname, picture = EXCLUDED.picture
	           RETURNING id, nickname, picture`
	var out User
	err := s.q.QueryRow(ctx, q, u.ID, u.Nickname, u.Picture).Scan(&out.ID, &out.Nickname, &out.Picture)
	return out, err
}

func (s *PostgresStore) GetUser(ctx context.Context, id string) (User, error) {
	var u User
	err := s.q.QueryRow(ctx,
		`SELECT id, nickname, picture FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Nickname, &u.Picture)
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, ErrNotFound
	}
	return u, err
}

func (s *PostgresStore) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.q.Query(ctx, `SELECT id, nickname, picture FROM users ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Nickname, &u.Picture); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

const commentColumns = `id, article, parent, user_id, content, datetime, removed`

func (s *PostgresStore) InsertComment(ctx context.Context, c Comment) (Comment, error) {
	if c.Datetime.IsZero() {
		c.Datetime = time.Now().UTC()
	}
	const q = `INSERT INTO comments (article, parent, user_id, content, datetime, removed)
	           VALUES ($1, $2, $3, $4, $5, $6)
	           RETURNING ` + commentColumns
	row := s.q.QueryRow(ctx, q, c.Article, c.Parent, c.User, c.Content, c.Datetime, c.Removed)
	return scanComment(row)
}

func (s *PostgresStore) GetComment(ctx context.Context, id int64) (Comment, error) {
	row := s.q.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1`, id)
	return scanComment(row)
}

// LockComment takes a row lock so racing cascades on the same parent
// chain serialize. Only meaningful inside InTx.
func (s *PostgresStore) LockComment(ctx context.Context, id int64) (Comment, error) {
	row := s.q.QueryRow(ctx, `SELECT `+commentColumns+` FROM comments WHERE id = $1 FOR UPDATE`, id)
	return scanComment(row)
}

func (s *PostgresStore) UpdateComment(ctx context.Context, c Comment) error {
	const q = `UPDATE comments SET user_id = $1, content = $2, removed = $3 WHERE id = $4`
	tag, err := s.q.Exec(ctx, q, c.User, c.Content, c.Removed, c.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, id int64) error {
	tag, err := s.q.Exec(ctx, `DELETE FROM comments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) HasReplies(ctx context.Context, id int64) (bool, error) {
	var exists bool
	err := s.q.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM comments WHERE parent = $1)`, id).Scan(&exists)
	return exists, err
}

func (s *PostgresStore) CommentsByArticle(ctx context.Context, articleID string) ([]Comment, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE article = $1 ORDER BY datetime, id`,
		articleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectComments(rows)
}

func (s *PostgresStore) DeleteArticleComments(ctx context.Context, articleID string) error {
	_, err := s.q.Exec(ctx, `DELETE FROM comments WHERE article = $1`, articleID)
	return err
}

func (s *PostgresStore) ListLiveComments(ctx context.Context, limit, offset int) ([]Comment, error) {
	rows, err := s.q.Query(ctx,
		`SELECT `+commentColumns+` FROM comments WHERE NOT removed
		 ORDER BY datetime, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectComments(rows)
}

// InTx begins a transaction and hands fn a view of the store bound to
// it. A nested call reuses the enclosing transaction.
func (s *PostgresStore) InTx(ctx context.Context, fn func(Store) error) error {
	if _, ok := s.q.(pgx.Tx); ok {
		return fn(s)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&PostgresStore{pool: s.pool, q: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func scanComment(row pgx.Row) (Comment, error) {
	var c Comment
	err := row.Scan(&c.ID, &c.Article, &c.Parent, &c.User, &c.Content, &c.Datetime, &c.Removed)
	if errors.Is(err, pgx.ErrNoRows) {
		return Comment{}, ErrNotFound
	}
	return c, err
}

func collectComments(rows pgx.Rows) ([]Comment, error) {
	var out []Comment
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.Article, &c.Parent, &c.User, &c.Content, &c.Datetime, &c.Removed); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
