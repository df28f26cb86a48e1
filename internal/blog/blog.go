// Package blog implements posts and reader comments: the domain types, the
// service that enforces their rules, and the /api/blog routes.
package blog

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Post is a blog article. JSON names match what the admin and reader
// frontends already consume.
type Post struct {
	ID              string    `json:"_id"`
	Title           string    `json:"title"`
	Subtitle        string    `json:"subTitle"`
	Description     string    `json:"description"`
	DescriptionHTML string    `json:"descriptionHtml"`
	Category        string    `json:"category"`
	Image           string    `json:"image"`
	IsPublished     bool      `json:"isPublished"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`
}

// Comment is a reader comment on a post. New comments wait for approval.
type Comment struct {
	ID         string    `json:"_id"`
	PostID     string    `json:"blog"`
	PostTitle  string    `json:"blogTitle,omitempty"`
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	IsApproved bool      `json:"isApproved"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Dashboard summarizes the blog for the admin home page.
type Dashboard struct {
	Posts       int    `json:"blogs"`
	Comments    int    `json:"comments"`
	Drafts      int    `json:"drafts"`
	RecentPosts []Post `json:"recentBlogs"`
}

// PostFilter narrows ListPosts.
type PostFilter struct {
	PublishedOnly bool
	Limit         int
}

// CommentFilter narrows ListComments. An empty PostID matches every post.
type CommentFilter struct {
	PostID       string
	ApprovedOnly bool
}

// Store persists posts and comments.
type Store interface {
	CreatePost(ctx context.Context, p Post) error
	GetPost(ctx context.Context, id string) (Post, error)
	ListPosts(ctx context.Context, f PostFilter) ([]Post, error)
	DeletePost(ctx context.Context, id string) error
	TogglePublished(ctx context.Context, id string, at time.Time) (Post, error)

	AddComment(ctx context.Context, c Comment) error
	ListComments(ctx context.Context, f CommentFilter) ([]Comment, error)
	DeleteComment(ctx context.Context, id string) (Comment, error)
	ApproveComment(ctx context.Context, id string) (Comment, error)

	Counts(ctx context.Context) (posts, comments, drafts int, err error)
}

// ErrNotFound is returned when a post or comment does not exist.
var ErrNotFound = errors.New("not found")

// ValidationError reports unusable client input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}
