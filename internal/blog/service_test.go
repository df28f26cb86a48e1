package blog_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quickblog-api/internal/blog"
	"github.com/JakeFAU/quickblog-api/internal/events"
	"github.com/JakeFAU/quickblog-api/internal/hash/sha256"
	"github.com/JakeFAU/quickblog-api/internal/id/uuid"
	"github.com/JakeFAU/quickblog-api/internal/markdown"
	"github.com/JakeFAU/quickblog-api/internal/media"
	"github.com/JakeFAU/quickblog-api/internal/publisher/memory"
	memstore "github.com/JakeFAU/quickblog-api/internal/storage/memory"
)

type stepClock struct {
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	svc    *blog.Service
	store  *memstore.PostStore
	blobs  *memstore.BlobStore
	events *memory.Publisher
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	store := memstore.NewPostStore()
	blobs := memstore.NewBlobStore()
	uploader, err := media.NewUploader(blobs, sha256.New(), media.Config{Prefix: "blog", MaxBytes: 1024})
	require.NoError(t, err)
	pub := memory.New()
	svc, err := blog.NewService(blog.Deps{
		Store:    store,
		IDs:      uuid.New(),
		Clock:    &stepClock{now: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)},
		Renderer: markdown.New(markdown.Options{}),
		Images:   uploader,
		Events:   events.NewEmitter(pub, "blog-events", nil),
	})
	require.NoError(t, err)
	return fixture{svc: svc, store: store, blobs: blobs, events: pub}
}

func eventTypes(pub *memory.Publisher) []events.Type {
	var out []events.Type
	for _, m := range pub.Messages() {
		out = append(out, m.Payload.(events.Event).Type)
	}
	return out
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestCreatePostRendersAndStoresImage(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	post, err := f.svc.CreatePost(context.Background(), blog.NewPost{
		Title:       "  Hello  ",
		Description: "# Intro\n\nBody",
		Category:    "Technology",
		IsPublished: true,
	}, bytes.NewReader(pngHeader))
	require.NoError(t, err)

	require.Equal(t, "Hello", post.Title)
	require.True(t, uuid.Valid(post.ID))
	require.Contains(t, post.DescriptionHTML, `<h1 id="intro">Intro</h1>`)
	require.True(t, strings.HasPrefix(post.Image, "memory://blog/"))
	require.Equal(t, 1, f.blobs.Len())
	require.Equal(t, []events.Type{events.PostCreated, events.PostPublished}, eventTypes(f.events))

	got, err := f.svc.PublishedPost(context.Background(), post.ID)
	require.NoError(t, err)
	require.Equal(t, post, got)
}

func TestCreatePostValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	tests := []struct {
		name  string
		in    blog.NewPost
		image []byte
		field string
	}{
		{name: "missing title", in: blog.NewPost{Description: "d", Category: "c"}, field: "title"},
		{name: "long title", in: blog.NewPost{Title: strings.Repeat("x", blog.MaxTitleLen+1), Description: "d", Category: "c"}, field: "title"},
		{name: "missing description", in: blog.NewPost{Title: "t", Category: "c"}, field: "description"},
		{name: "missing category", in: blog.NewPost{Title: "t", Description: "d"}, field: "category"},
		{name: "not an image", in: blog.NewPost{Title: "t", Description: "d", Category: "c"}, image: []byte("plain text"), field: "image"},
		{name: "image too large", in: blog.NewPost{Title: "t", Description: "d", Category: "c"}, image: append(pngHeader, make([]byte, 2048)...), field: "image"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var image *bytes.Reader
			if tt.image != nil {
				image = bytes.NewReader(tt.image)
			}
			var err error
			if image != nil {
				_, err = f.svc.CreatePost(context.Background(), tt.in, image)
			} else {
				_, err = f.svc.CreatePost(context.Background(), tt.in, nil)
			}
			var verr *blog.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, tt.field, verr.Field)
		})
	}
	posts, _ := f.svc.AllPosts(context.Background())
	require.Empty(t, posts)
}

func TestDraftsAreHiddenFromReaders(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	draft, err := f.svc.CreatePost(ctx, blog.NewPost{Title: "Draft", Description: "d", Category: "c"}, nil)
	require.NoError(t, err)

	_, err = f.svc.PublishedPost(ctx, draft.ID)
	require.ErrorIs(t, err, blog.ErrNotFound)
	published, err := f.svc.PublishedPosts(ctx)
	require.NoError(t, err)
	require.Empty(t, published)
	require.NotNil(t, published)

	_, err = f.svc.AddComment(ctx, blog.NewComment{PostID: draft.ID, Name: "n", Content: "c"})
	require.ErrorIs(t, err, blog.ErrNotFound)

	toggled, err := f.svc.TogglePublish(ctx, draft.ID)
	require.NoError(t, err)
	require.True(t, toggled.IsPublished)
	published, _ = f.svc.PublishedPosts(ctx)
	require.Len(t, published, 1)

	toggled, err = f.svc.TogglePublish(ctx, draft.ID)
	require.NoError(t, err)
	require.False(t, toggled.IsPublished)
	require.Equal(t,
		[]events.Type{events.PostCreated, events.PostPublished, events.PostUnpublished},
		eventTypes(f.events))
}

func TestCommentModeration(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	post, err := f.svc.CreatePost(ctx, blog.NewPost{Title: "T", Description: "d", Category: "c", IsPublished: true}, nil)
	require.NoError(t, err)

	c, err := f.svc.AddComment(ctx, blog.NewComment{PostID: post.ID, Name: " Ada ", Content: " Nice post "})
	require.NoError(t, err)
	require.Equal(t, "Ada", c.Name)
	require.False(t, c.IsApproved)

	visible, err := f.svc.ApprovedComments(ctx, post.ID)
	require.NoError(t, err)
	require.Empty(t, visible)

	all, err := f.svc.AllComments(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.Equal(t, "T", all[0].PostTitle)

	_, err = f.svc.ApproveComment(ctx, c.ID)
	require.NoError(t, err)
	visible, _ = f.svc.ApprovedComments(ctx, post.ID)
	require.Len(t, visible, 1)

	dash, err := f.svc.Dashboard(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, dash.Posts)
	require.Equal(t, 1, dash.Comments)
	require.Equal(t, 0, dash.Drafts)
	require.Len(t, dash.RecentPosts, 1)

	require.NoError(t, f.svc.DeleteComment(ctx, c.ID))
	require.ErrorIs(t, f.svc.DeleteComment(ctx, c.ID), blog.ErrNotFound)

	require.NoError(t, f.svc.DeletePost(ctx, post.ID))
	require.ErrorIs(t, f.svc.DeletePost(ctx, post.ID), blog.ErrNotFound)
}

func TestCommentValidation(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	tests := []blog.NewComment{
		{PostID: "x", Name: "", Content: "c"},
		{PostID: "x", Name: "n", Content: "   "},
		{PostID: "x", Name: strings.Repeat("n", blog.MaxCommentNameLen+1), Content: "c"},
		{PostID: "x", Name: "n", Content: strings.Repeat("c", blog.MaxCommentLen+1)},
	}
	for _, in := range tests {
		_, err := f.svc.AddComment(ctx, in)
		var verr *blog.ValidationError
		require.ErrorAs(t, err, &verr)
	}
}

func TestMalformedIDsAreNotFound(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.PublishedPost(ctx, "65f1c0ffee")
	require.ErrorIs(t, err, blog.ErrNotFound)
	require.ErrorIs(t, f.svc.DeletePost(ctx, "'; DROP TABLE posts; --"), blog.ErrNotFound)
	_, err = f.svc.TogglePublish(ctx, "")
	require.ErrorIs(t, err, blog.ErrNotFound)
	_, err = f.svc.ApprovedComments(ctx, "nope")
	require.ErrorIs(t, err, blog.ErrNotFound)
	_, err = f.svc.ApproveComment(ctx, "nope")
	require.ErrorIs(t, err, blog.ErrNotFound)
}

type brokenStore struct {
	blog.Store
}

func (brokenStore) ListPosts(context.Context, blog.PostFilter) ([]blog.Post, error) {
	return nil, errors.New("relation \"posts\" does not exist")
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	t.Parallel()

	svc, err := blog.NewService(blog.Deps{
		Store:    brokenStore{},
		IDs:      uuid.New(),
		Clock:    &stepClock{},
		Renderer: markdown.New(markdown.Options{}),
	})
	require.NoError(t, err)
	_, err = svc.PublishedPosts(context.Background())
	require.ErrorContains(t, err, "list posts")
	require.NotErrorIs(t, err, blog.ErrNotFound)
}

func TestNewServiceRequiresDeps(t *testing.T) {
	t.Parallel()

	_, err := blog.NewService(blog.Deps{})
	require.Error(t, err)
}

func TestImageRejectedWhenUploadsDisabled(t *testing.T) {
	t.Parallel()

	svc, err := blog.NewService(blog.Deps{
		Store:    memstore.NewPostStore(),
		IDs:      uuid.New(),
		Clock:    &stepClock{},
		Renderer: markdown.New(markdown.Options{}),
	})
	require.NoError(t, err)
	_, err = svc.CreatePost(context.Background(), blog.NewPost{Title: "t", Description: "d", Category: "c"}, bytes.NewReader(pngHeader))
	var verr *blog.ValidationError
	require.ErrorAs(t, err, &verr)
}
