package memory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/JakeFAU/quickblog-api/internal/blog"
)

// PostStore provides an in-memory blog.Store for development/testing.
type PostStore struct {
	mu       sync.RWMutex
	posts    map[string]blog.Post
	comments map[string]blog.Comment
}

// NewPostStore constructs a PostStore.
func NewPostStore() *PostStore {
	return &PostStore{
		posts:    make(map[string]blog.Post),
		comments: make(map[string]blog.Comment),
	}
}

// CreatePost stores a new post.
func (s *PostStore) CreatePost(_ context.Context, p blog.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.posts[p.ID]; exists {
		return errors.New("post already exists")
	}
	s.posts[p.ID] = p
	return nil
}

// GetPost returns a post by id.
func (s *PostStore) GetPost(_ context.Context, id string) (blog.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.posts[id]
	if !ok {
		return blog.Post{}, blog.ErrNotFound
	}
	return p, nil
}

// ListPosts returns posts newest first.
func (s *PostStore) ListPosts(_ context.Context, f blog.PostFilter) ([]blog.Post, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blog.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if f.PublishedOnly && !p.IsPublished {
			continue
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// DeletePost removes a post and its comments.
func (s *PostStore) DeletePost(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return blog.ErrNotFound
	}
	delete(s.posts, id)
	for cid, c := range s.comments {
		if c.PostID == id {
			delete(s.comments, cid)
		}
	}
	return nil
}

// TogglePublished flips the published flag.
func (s *PostStore) TogglePublished(_ context.Context, id string, at time.Time) (blog.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return blog.Post{}, blog.ErrNotFound
	}
	p.IsPublished = !p.IsPublished
	p.UpdatedAt = at
	s.posts[id] = p
	return p, nil
}

// AddComment stores a comment on an existing post.
func (s *PostStore) AddComment(_ context.Context, c blog.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[c.PostID]; !ok {
		return blog.ErrNotFound
	}
	s.comments[c.ID] = c
	return nil
}

// ListComments returns matching comments newest first, with post titles.
func (s *PostStore) ListComments(_ context.Context, f blog.CommentFilter) ([]blog.Comment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]blog.Comment, 0)
	for _, c := range s.comments {
		if f.PostID != "" && c.PostID != f.PostID {
			continue
		}
		if f.ApprovedOnly && !c.IsApproved {
			continue
		}
		c.PostTitle = s.posts[c.PostID].Title
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

// DeleteComment removes a comment and returns it.
func (s *PostStore) DeleteComment(_ context.Context, id string) (blog.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return blog.Comment{}, blog.ErrNotFound
	}
	delete(s.comments, id)
	return c, nil
}

// ApproveComment marks a comment approved.
func (s *PostStore) ApproveComment(_ context.Context, id string) (blog.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.comments[id]
	if !ok {
		return blog.Comment{}, blog.ErrNotFound
	}
	c.IsApproved = true
	s.comments[id] = c
	return c, nil
}

// Counts returns totals for the dashboard.
func (s *PostStore) Counts(_ context.Context) (posts, comments, drafts int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, p := range s.posts {
		if !p.IsPublished {
			drafts++
		}
	}
	return len(s.posts), len(s.comments), drafts, nil
}
