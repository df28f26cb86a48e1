package blog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JakeFAU/quickblog-api/internal/events"
	"github.com/JakeFAU/quickblog-api/internal/id/uuid"
	"github.com/JakeFAU/quickblog-api/internal/media"
)

// Field limits.
const (
	MaxTitleLen       = 200
	MaxCommentNameLen = 100
	MaxCommentLen     = 2000
	RecentPostsLimit  = 5
)

// Clock supplies timestamps.
type Clock interface {
	Now() time.Time
}

// IDGenerator supplies new record ids.
type IDGenerator interface {
	NewID() (string, error)
}

// Renderer turns a Markdown description into HTML.
type Renderer interface {
	Render(src string) (string, error)
}

// ImageUploader stores a post image and returns its URL.
type ImageUploader interface {
	Upload(ctx context.Context, r io.Reader) (string, error)
}

// EventEmitter announces changes.
type EventEmitter interface {
	Emit(ctx context.Context, evt events.Event)
}

// Deps are the collaborators of a Service. Images and Events are optional.
type Deps struct {
	Store    Store
	IDs      IDGenerator
	Clock    Clock
	Renderer Renderer
	Images   ImageUploader
	Events   EventEmitter
}

// Service applies the blog's rules on top of a Store.
type Service struct {
	store    Store
	ids      IDGenerator
	clock    Clock
	renderer Renderer
	images   ImageUploader
	events   EventEmitter
}

// NewService validates deps and returns a Service.
func NewService(d Deps) (*Service, error) {
	switch {
	case d.Store == nil:
		return nil, fmt.Errorf("blog store is required")
	case d.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	case d.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case d.Renderer == nil:
		return nil, fmt.Errorf("markdown renderer is required")
	}
	return &Service{
		store:    d.Store,
		ids:      d.IDs,
		clock:    d.Clock,
		renderer: d.Renderer,
		images:   d.Images,
		events:   d.Events,
	}, nil
}

// NewPost is the admin input for creating a post.
type NewPost struct {
	Title       string `json:"title"`
	Subtitle    string `json:"subTitle"`
	Description string `json:"description"`
	Category    string `json:"category"`
	IsPublished bool   `json:"isPublished"`
}

// CreatePost validates in, stores the optional image, renders the
// description, and saves the post.
func (s *Service) CreatePost(ctx context.Context, in NewPost, image io.Reader) (Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.Subtitle = strings.TrimSpace(in.Subtitle)
	in.Category = strings.TrimSpace(in.Category)
	switch {
	case in.Title == "":
		return Post{}, invalid("title", "Missing required fields")
	case utf8.RuneCountInString(in.Title) > MaxTitleLen:
		return Post{}, invalid("title", fmt.Sprintf("Title must be at most %d characters", MaxTitleLen))
	case strings.TrimSpace(in.Description) == "":
		return Post{}, invalid("description", "Missing required fields")
	case in.Category == "":
		return Post{}, invalid("category", "Missing required fields")
	}

	html, err := s.renderer.Render(in.Description)
	if err != nil {
		return Post{}, fmt.Errorf("render description: %w", err)
	}

	var imageURL string
	if image != nil {
		if s.images == nil {
			return Post{}, invalid("image", "Image uploads are disabled")
		}
		imageURL, err = s.images.Upload(ctx, image)
		switch {
		case errors.Is(err, media.ErrTooLarge):
			return Post{}, invalid("image", "Image is too large")
		case errors.Is(err, media.ErrUnsupportedType), errors.Is(err, media.ErrEmpty):
			return Post{}, invalid("image", "Image must be a PNG, JPEG, GIF, or WebP file")
		case err != nil:
			return Post{}, fmt.Errorf("upload image: %w", err)
		}
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Post{}, fmt.Errorf("generate post id: %w", err)
	}
	now := s.clock.Now()
	post := Post{
		ID:              id,
		Title:           in.Title,
		Subtitle:        in.Subtitle,
		Description:     in.Description,
		DescriptionHTML: html,
		Category:        in.Category,
		Image:           imageURL,
		IsPublished:     in.IsPublished,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.store.CreatePost(ctx, post); err != nil {
		return Post{}, fmt.Errorf("create post: %w", err)
	}
	s.emit(ctx, events.PostCreated, post.ID, "")
	if post.IsPublished {
		s.emit(ctx, events.PostPublished, post.ID, "")
	}
	return post, nil
}

// PublishedPosts lists published posts, newest first.
func (s *Service) PublishedPosts(ctx context.Context) ([]Post, error) {
	return s.listPosts(ctx, PostFilter{PublishedOnly: true})
}

// AllPosts lists every post including drafts, newest first.
func (s *Service) AllPosts(ctx context.Context) ([]Post, error) {
	return s.listPosts(ctx, PostFilter{})
}

func (s *Service) listPosts(ctx context.Context, f PostFilter) ([]Post, error) {
	posts, err := s.store.ListPosts(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	if posts == nil {
		posts = []Post{}
	}
	return posts, nil
}

// PublishedPost returns a post readers may see. Drafts are reported as
// not found.
func (s *Service) PublishedPost(ctx context.Context, id string) (Post, error) {
	post, err := s.post(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if !post.IsPublished {
		return Post{}, ErrNotFound
	}
	return post, nil
}

func (s *Service) post(ctx context.Context, id string) (Post, error) {
	if !uuid.Valid(id) {
		return Post{}, ErrNotFound
	}
	post, err := s.store.GetPost(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Post{}, ErrNotFound
		}
		return Post{}, fmt.Errorf("get post: %w", err)
	}
	return post, nil
}

// DeletePost removes a post and, with it, its comments.
func (s *Service) DeletePost(ctx context.Context, id string) error {
	if !uuid.Valid(id) {
		return ErrNotFound
	}
	if err := s.store.DeletePost(ctx, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete post: %w", err)
	}
	s.emit(ctx, events.PostDeleted, id, "")
	return nil
}

// TogglePublish flips a post between draft and published.
func (s *Service) TogglePublish(ctx context.Context, id string) (Post, error) {
	if !uuid.Valid(id) {
		return Post{}, ErrNotFound
	}
	post, err := s.store.TogglePublished(ctx, id, s.clock.Now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Post{}, ErrNotFound
		}
		return Post{}, fmt.Errorf("toggle publish: %w", err)
	}
	evt := events.PostUnpublished
	if post.IsPublished {
		evt = events.PostPublished
	}
	s.emit(ctx, evt, post.ID, "")
	return post, nil
}

// NewComment is a reader's comment submission.
type NewComment struct {
	PostID  string `json:"blog"`
	Name    string `json:"name"`
	Content string `json:"content"`
}

// AddComment stores a comment on a published post, pending approval.
func (s *Service) AddComment(ctx context.Context, in NewComment) (Comment, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Content = strings.TrimSpace(in.Content)
	switch {
	case in.Name == "" || in.Content == "":
		return Comment{}, invalid("comment", "Missing required fields")
	case utf8.RuneCountInString(in.Name) > MaxCommentNameLen:
		return Comment{}, invalid("name", fmt.Sprintf("Name must be at most %d characters", MaxCommentNameLen))
	case utf8.RuneCountInString(in.Content) > MaxCommentLen:
		return Comment{}, invalid("content", fmt.Sprintf("Comment must be at most %d characters", MaxCommentLen))
	}
	if _, err := s.PublishedPost(ctx, in.PostID); err != nil {
		return Comment{}, err
	}

	id, err := s.ids.NewID()
	if err != nil {
		return Comment{}, fmt.Errorf("generate comment id: %w", err)
	}
	c := Comment{
		ID:        id,
		PostID:    in.PostID,
		Name:      in.Name,
		Content:   in.Content,
		CreatedAt: s.clock.Now(),
	}
	if err := s.store.AddComment(ctx, c); err != nil {
		if errors.Is(err, ErrNotFound) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, fmt.Errorf("add comment: %w", err)
	}
	s.emit(ctx, events.CommentAdded, c.PostID, c.ID)
	return c, nil
}

// ApprovedComments lists the visible comments on a post, newest first.
func (s *Service) ApprovedComments(ctx context.Context, postID string) ([]Comment, error) {
	if !uuid.Valid(postID) {
		return nil, ErrNotFound
	}
	return s.listComments(ctx, CommentFilter{PostID: postID, ApprovedOnly: true})
}

// AllComments lists every comment with its post title, newest first.
func (s *Service) AllComments(ctx context.Context) ([]Comment, error) {
	return s.listComments(ctx, CommentFilter{})
}

func (s *Service) listComments(ctx context.Context, f CommentFilter) ([]Comment, error) {
	comments, err := s.store.ListComments(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	if comments == nil {
		comments = []Comment{}
	}
	return comments, nil
}

// DeleteComment removes a comment.
func (s *Service) DeleteComment(ctx context.Context, id string) error {
	if !uuid.Valid(id) {
		return ErrNotFound
	}
	c, err := s.store.DeleteComment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete comment: %w", err)
	}
	s.emit(ctx, events.CommentDeleted, c.PostID, c.ID)
	return nil
}

// ApproveComment makes a comment visible to readers.
func (s *Service) ApproveComment(ctx context.Context, id string) (Comment, error) {
	if !uuid.Valid(id) {
		return Comment{}, ErrNotFound
	}
	c, err := s.store.ApproveComment(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Comment{}, ErrNotFound
		}
		return Comment{}, fmt.Errorf("approve comment: %w", err)
	}
	s.emit(ctx, events.CommentApproved, c.PostID, c.ID)
	return c, nil
}

// Dashboard gathers counts and the most recent posts.
func (s *Service) Dashboard(ctx context.Context) (Dashboard, error) {
	posts, comments, drafts, err := s.store.Counts(ctx)
	if err != nil {
		return Dashboard{}, fmt.Errorf("count records: %w", err)
	}
	recent, err := s.listPosts(ctx, PostFilter{Limit: RecentPostsLimit})
	if err != nil {
		return Dashboard{}, err
	}
	return Dashboard{Posts: posts, Comments: comments, Drafts: drafts, RecentPosts: recent}, nil
}

func (s *Service) emit(ctx context.Context, t events.Type, postID, commentID string) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, events.Event{Type: t, PostID: postID, CommentID: commentID, OccurredAt: s.clock.Now()})
}
