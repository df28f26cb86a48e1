package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JakeFAU/quickblog-api/internal/blog"
)

func TestPostStoreLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := NewPostStore()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	older := blog.Post{ID: "p1", Title: "Older", IsPublished: true, CreatedAt: base}
	newer := blog.Post{ID: "p2", Title: "Newer", CreatedAt: base.Add(time.Hour)}
	if err := s.CreatePost(ctx, older); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if err := s.CreatePost(ctx, newer); err != nil {
		t.Fatalf("CreatePost() error = %v", err)
	}
	if err := s.CreatePost(ctx, newer); err == nil {
		t.Fatal("expected duplicate post to fail")
	}

	all, _ := s.ListPosts(ctx, blog.PostFilter{})
	if len(all) != 2 || all[0].ID != "p2" {
		t.Fatalf("expected newest first, got %+v", all)
	}
	published, _ := s.ListPosts(ctx, blog.PostFilter{PublishedOnly: true})
	if len(published) != 1 || published[0].ID != "p1" {
		t.Fatalf("expected only published post, got %+v", published)
	}
	limited, _ := s.ListPosts(ctx, blog.PostFilter{Limit: 1})
	if len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}

	toggled, err := s.TogglePublished(ctx, "p2", base.Add(2*time.Hour))
	if err != nil || !toggled.IsPublished || !toggled.UpdatedAt.Equal(base.Add(2*time.Hour)) {
		t.Fatalf("unexpected toggle result %+v err=%v", toggled, err)
	}

	if err := s.AddComment(ctx, blog.Comment{ID: "c1", PostID: "p1", CreatedAt: base}); err != nil {
		t.Fatalf("AddComment() error = %v", err)
	}
	if err := s.AddComment(ctx, blog.Comment{ID: "c2", PostID: "missing"}); !errors.Is(err, blog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing post, got %v", err)
	}
	approved, _ := s.ListComments(ctx, blog.CommentFilter{PostID: "p1", ApprovedOnly: true})
	if len(approved) != 0 {
		t.Fatalf("expected no approved comments yet, got %d", len(approved))
	}
	if _, err := s.ApproveComment(ctx, "c1"); err != nil {
		t.Fatalf("ApproveComment() error = %v", err)
	}
	approved, _ = s.ListComments(ctx, blog.CommentFilter{PostID: "p1", ApprovedOnly: true})
	if len(approved) != 1 || approved[0].PostTitle != "Older" {
		t.Fatalf("expected approved comment with title, got %+v", approved)
	}

	posts, comments, drafts, _ := s.Counts(ctx)
	if posts != 2 || comments != 1 || drafts != 0 {
		t.Fatalf("unexpected counts %d %d %d", posts, comments, drafts)
	}

	if err := s.DeletePost(ctx, "p1"); err != nil {
		t.Fatalf("DeletePost() error = %v", err)
	}
	if _, err := s.DeleteComment(ctx, "c1"); !errors.Is(err, blog.ErrNotFound) {
		t.Fatalf("expected comment to be removed with its post, got %v", err)
	}
	if err := s.DeletePost(ctx, "p1"); !errors.Is(err, blog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
