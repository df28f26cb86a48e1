// Package postgres provides the Postgres-backed blog store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JakeFAU/quickblog-api/internal/blog"
	"github.com/JakeFAU/quickblog-api/internal/database"
)

const foreignKeyViolation = "23503"

const postColumns = `id::text, title, subtitle, description, description_html, category, image,
	is_published, created_at, updated_at`

const commentColumns = `id::text, post_id::text, name, content, is_approved, created_at`

// PoolSource yields the shared pool, connecting if needed.
type PoolSource interface {
	EnsureConnected(ctx context.Context) (database.Pool, error)
}

// PostStore implements blog.Store over the shared pool.
type PostStore struct {
	src PoolSource
}

// NewPostStore returns a PostStore reading its pool from src.
func NewPostStore(src PoolSource) (*PostStore, error) {
	if src == nil {
		return nil, fmt.Errorf("pool source is required")
	}
	return &PostStore{src: src}, nil
}

func (s *PostStore) pool(ctx context.Context) (database.Pool, error) {
	p, err := s.src.EnsureConnected(ctx)
	if err != nil {
		return nil, err //nolint:wrapcheck // ConnectionError already describes itself
	}
	return p, nil
}

// CreatePost inserts p.
func (s *PostStore) CreatePost(ctx context.Context, p blog.Post) error {
	pool, err := s.pool(ctx)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
INSERT INTO posts (
	id, title, subtitle, description, description_html, category, image,
	is_published, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		p.ID, p.Title, p.Subtitle, p.Description, p.DescriptionHTML, p.Category, p.Image,
		p.IsPublished, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

// GetPost loads one post.
func (s *PostStore) GetPost(ctx context.Context, id string) (blog.Post, error) {
	pool, err := s.pool(ctx)
	if err != nil {
		return blog.Post{}, err
	}
	row := pool.QueryRow(ctx, `SELECT `+postColumns+` FROM posts WHERE id = $1`, id)
	p, err := scanPost(row)
	if err != nil {
		return blog.Post{}, notFound(err, "get post")
	}
	return p, nil
}

// ListPosts returns posts newest first.
func (s *PostStore) ListPosts(ctx context.Context, f blog.PostFilter) ([]blog.Post, error) {
	pool, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}
	var (
		query strings.Builder
		args  []any
	)
	query.WriteString(`SELECT ` + postColumns + ` FROM posts`)
	if f.PublishedOnly {
		query.WriteString(` WHERE is_published`)
	}
	query.WriteString(` ORDER BY created_at DESC`)
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query.WriteString(` LIMIT $1`)
	}

	rows, err := pool.Query(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer rows.Close()

	posts := []blog.Post{}
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

// DeletePost removes a post; its comments go with it.
func (s *PostStore) DeletePost(ctx context.Context, id string) error {
	pool, err := s.pool(ctx)
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return blog.ErrNotFound
	}
	return nil
}

// TogglePublished flips is_published and returns the updated post.
func (s *PostStore) TogglePublished(ctx context.Context, id string, at time.Time) (blog.Post, error) {
	pool, err := s.pool(ctx)
	if err != nil {
		return blog.Post{}, err
	}
	row := pool.QueryRow(ctx, `
UPDATE posts SET is_published = NOT is_published, updated_at = $2
WHERE id = $1
RETURNING `+postColumns, id, at)
	p, err := scanPost(row)
	if err != nil {
		return blog.Post{}, notFound(err, "toggle post")
	}
	return p, nil
}

// AddComment inserts c. A missing post yields blog.ErrNotFound.
func (s *PostStore) AddComment(ctx context.Context, c blog.Comment) error {
	pool, err := s.pool(ctx)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
INSERT INTO comments (id, post_id, name, content, is_approved, created_at)
VALUES ($1,$2,$3,$4,$5,$6)`,
		c.ID, c.PostID, c.Name, c.Content, c.IsApproved, c.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return blog.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

// ListComments returns comments newest first with their post titles.
func (s *PostStore) ListComments(ctx context.Context, f blog.CommentFilter) ([]blog.Comment, error) {
	pool, err := s.pool(ctx)
	if err != nil {
		return nil, err
	}
	var (
		where []string
		args  []any
	)
	if f.PostID != "" {
		args = append(args, f.PostID)
		where = append(where, fmt.Sprintf("c.post_id = $%d", len(args)))
	}
	if f.ApprovedOnly {
		where = append(where, "c.is_approved")
	}
	query := `
SELECT c.id::text, c.post_id::text, p.title, c.name, c.content, c.is_approved, c.created_at
FROM comments c JOIN posts p ON p.id = c.post_id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY c.created_at DESC"

	rows, err := pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	comments := []blog.Comment{}
	for rows.Next() {
		var c blog.Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.PostTitle, &c.Name, &c.Content, &c.IsApproved, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		comments = append(comments, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return comments, nil
}

// DeleteComment removes a comment and returns it.
func (s *PostStore) DeleteComment(ctx context.Context, id string) (blog.Comment, error) {
	pool, err := s.pool(ctx)
	if err != nil {
		return blog.Comment{}, err
	}
	row := pool.QueryRow(ctx, `DELETE FROM comments WHERE id = $1 RETURNING `+commentColumns, id)
	c, err := scanComment(row)
	if err != nil {
		return blog.Comment{}, notFound(err, "delete comment")
	}
	return c, nil
}

// ApproveComment marks a comment approved and returns it.
func (s *PostStore) ApproveComment(ctx context.Context, id string) (blog.Comment, error) {
	pool, err := s.pool(ctx)
	if err != nil {
		return blog.Comment{}, err
	}
	row := pool.QueryRow(ctx, `UPDATE comments SET is_approved = TRUE WHERE id = $1 RETURNING `+commentColumns, id)
	c, err := scanComment(row)
	if err != nil {
		return blog.Comment{}, notFound(err, "approve comment")
	}
	return c, nil
}

// Counts returns the number of posts, comments and drafts.
func (s *PostStore) Counts(ctx context.Context) (posts, comments, drafts int, err error) {
	pool, err := s.pool(ctx)
	if err != nil {
		return 0, 0, 0, err
	}
	var p, c, d int64
	err = pool.QueryRow(ctx, `
SELECT
	(SELECT count(*) FROM posts),
	(SELECT count(*) FROM comments),
	(SELECT count(*) FROM posts WHERE NOT is_published)`).Scan(&p, &c, &d)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("count records: %w", err)
	}
	return int(p), int(c), int(d), nil
}

func scanPost(row pgx.Row) (blog.Post, error) {
	var p blog.Post
	err := row.Scan(&p.ID, &p.Title, &p.Subtitle, &p.Description, &p.DescriptionHTML, &p.Category, &p.Image,
		&p.IsPublished, &p.CreatedAt, &p.UpdatedAt)
	return p, err //nolint:wrapcheck // callers wrap
}

func scanComment(row pgx.Row) (blog.Comment, error) {
	var c blog.Comment
	err := row.Scan(&c.ID, &c.PostID, &c.Name, &c.Content, &c.IsApproved, &c.CreatedAt)
	return c, err //nolint:wrapcheck // callers wrap
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return blog.ErrNotFound
	}
	return fmt.Errorf("%s: %w", op, err)
}
