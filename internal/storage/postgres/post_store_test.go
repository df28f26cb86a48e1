package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quickblog-api/internal/blog"
	"github.com/JakeFAU/quickblog-api/internal/database"
)

type mockSource struct {
	pool database.Pool
	err  error
}

func (m mockSource) EnsureConnected(context.Context) (database.Pool, error) {
	return m.pool, m.err
}

func newMockStore(t *testing.T) (*PostStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewPostStore(mockSource{pool: mock})
	require.NoError(t, err)
	return store, mock
}

var (
	postCols    = []string{"id", "title", "subtitle", "description", "description_html", "category", "image", "is_published", "created_at", "updated_at"}
	commentCols = []string{"id", "post_id", "name", "content", "is_approved", "created_at"}
	ts          = time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
)

func samplePost() blog.Post {
	return blog.Post{
		ID:              "0190a6f4-8d4e-7c1a-9b0a-2f5d4c3b2a10",
		Title:           "Hello",
		Subtitle:        "sub",
		Description:     "# Hi",
		DescriptionHTML: "<h1 id=\"hi\">Hi</h1>\n",
		Category:        "Tech",
		Image:           "https://cdn.example.com/a.png",
		IsPublished:     true,
		CreatedAt:       ts,
		UpdatedAt:       ts,
	}
}

func postRow(p blog.Post) []any {
	return []any{p.ID, p.Title, p.Subtitle, p.Description, p.DescriptionHTML, p.Category, p.Image, p.IsPublished, p.CreatedAt, p.UpdatedAt}
}

func TestCreatePostInsertsRow(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	p := samplePost()
	mock.ExpectExec("INSERT INTO posts").
		WithArgs(postRow(p)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreatePost(context.Background(), p))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetPost(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	p := samplePost()
	mock.ExpectQuery("SELECT (.+) FROM posts WHERE id").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(postCols).AddRow(postRow(p)...))
	mock.ExpectQuery("SELECT (.+) FROM posts WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	got, err := store.GetPost(context.Background(), p.ID)
	require.NoError(t, err)
	require.Equal(t, p, got)

	_, err = store.GetPost(context.Background(), "missing")
	require.ErrorIs(t, err, blog.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPostsPublishedWithLimit(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	p := samplePost()
	mock.ExpectQuery("FROM posts WHERE is_published ORDER BY created_at DESC LIMIT").
		WithArgs(5).
		WillReturnRows(pgxmock.NewRows(postCols).AddRow(postRow(p)...))

	got, err := store.ListPosts(context.Background(), blog.PostFilter{PublishedOnly: true, Limit: 5})
	require.NoError(t, err)
	require.Equal(t, []blog.Post{p}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListPostsEmpty(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("FROM posts ORDER BY created_at DESC").
		WillReturnRows(pgxmock.NewRows(postCols))

	got, err := store.ListPosts(context.Background(), blog.PostFilter{})
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Empty(t, got)
}

func TestDeletePost(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectExec("DELETE FROM posts").WithArgs("a").WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM posts").WithArgs("b").WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, store.DeletePost(context.Background(), "a"))
	require.ErrorIs(t, store.DeletePost(context.Background(), "b"), blog.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTogglePublished(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	p := samplePost()
	p.IsPublished = false
	at := ts.Add(time.Hour)
	p.UpdatedAt = at
	mock.ExpectQuery("UPDATE posts SET is_published = NOT is_published").
		WithArgs(p.ID, at).
		WillReturnRows(pgxmock.NewRows(postCols).AddRow(postRow(p)...))

	got, err := store.TogglePublished(context.Background(), p.ID, at)
	require.NoError(t, err)
	require.False(t, got.IsPublished)
	require.Equal(t, at, got.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAddCommentMapsForeignKeyViolation(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	c := blog.Comment{ID: "c1", PostID: "p1", Name: "Ada", Content: "Hi", CreatedAt: ts}
	mock.ExpectExec("INSERT INTO comments").
		WithArgs(c.ID, c.PostID, c.Name, c.Content, c.IsApproved, c.CreatedAt).
		WillReturnError(&pgconn.PgError{Code: "23503"})
	mock.ExpectExec("INSERT INTO comments").
		WithArgs(c.ID, c.PostID, c.Name, c.Content, c.IsApproved, c.CreatedAt).
		WillReturnError(errors.New("boom"))

	require.ErrorIs(t, store.AddComment(context.Background(), c), blog.ErrNotFound)
	err := store.AddComment(context.Background(), c)
	require.Error(t, err)
	require.NotErrorIs(t, err, blog.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestListCommentsFilters(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery(`WHERE c.post_id = \$1 AND c.is_approved ORDER BY c.created_at DESC`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "post_id", "title", "name", "content", "is_approved", "created_at"}).
			AddRow("c1", "p1", "Hello", "Ada", "Hi", true, ts))

	got, err := store.ListComments(context.Background(), blog.CommentFilter{PostID: "p1", ApprovedOnly: true})
	require.NoError(t, err)
	require.Equal(t, []blog.Comment{{
		ID: "c1", PostID: "p1", PostTitle: "Hello", Name: "Ada", Content: "Hi", IsApproved: true, CreatedAt: ts,
	}}, got)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApproveAndDeleteComment(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("UPDATE comments SET is_approved = TRUE").
		WithArgs("c1").
		WillReturnRows(pgxmock.NewRows(commentCols).AddRow("c1", "p1", "Ada", "Hi", true, ts))
	mock.ExpectQuery("DELETE FROM comments").
		WithArgs("c2").
		WillReturnError(pgx.ErrNoRows)

	c, err := store.ApproveComment(context.Background(), "c1")
	require.NoError(t, err)
	require.True(t, c.IsApproved)

	_, err = store.DeleteComment(context.Background(), "c2")
	require.ErrorIs(t, err, blog.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCounts(t *testing.T) {
	t.Parallel()

	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT").
		WillReturnRows(pgxmock.NewRows([]string{"posts", "comments", "drafts"}).AddRow(int64(4), int64(9), int64(1)))

	posts, comments, drafts, err := store.Counts(context.Background())
	require.NoError(t, err)
	require.Equal(t, []int{4, 9, 1}, []int{posts, comments, drafts})
}

func TestConnectionErrorPropagates(t *testing.T) {
	t.Parallel()

	connErr := &database.ConnectionError{Err: errors.New("refused")}
	store, err := NewPostStore(mockSource{err: connErr})
	require.NoError(t, err)

	_, err = store.ListPosts(context.Background(), blog.PostFilter{})
	var target *database.ConnectionError
	require.ErrorAs(t, err, &target)

	_, err = NewPostStore(nil)
	require.Error(t, err)
}
