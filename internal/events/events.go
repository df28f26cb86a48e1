// Package events announces blog changes to downstream subscribers such as
// static-site rebuilders and notification workers.
package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/quickblog-api/internal/metrics"
)

// Type names a blog change.
type Type string

// Event types.
const (
	PostCreated     Type = "post.created"
	PostPublished   Type = "post.published"
	PostUnpublished Type = "post.unpublished"
	PostDeleted     Type = "post.deleted"
	CommentAdded    Type = "comment.added"
	CommentApproved Type = "comment.approved"
	CommentDeleted  Type = "comment.deleted"
)

// Event is the message body published for every change.
type Event struct {
	Type       Type      `json:"type"`
	PostID     string    `json:"postId,omitempty"`
	CommentID  string    `json:"commentId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Attributes exposes the type and ids as message attributes.
func (e Event) Attributes() map[string]string {
	attrs := map[string]string{"event_type": string(e.Type)}
	if e.PostID != "" {
		attrs["post_id"] = e.PostID
	}
	if e.CommentID != "" {
		attrs["comment_id"] = e.CommentID
	}
	return attrs
}

// Publisher sends a payload to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Emitter publishes events best-effort: a failed publish is logged and
// counted, never returned to the request that caused it.
type Emitter struct {
	pub    Publisher
	topic  string
	logger *zap.Logger
}

// NewEmitter returns an Emitter; a nil publisher disables publishing.
func NewEmitter(pub Publisher, topic string, logger *zap.Logger) *Emitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Emitter{pub: pub, topic: topic, logger: logger}
}

// Emit publishes evt.
func (e *Emitter) Emit(ctx context.Context, evt Event) {
	if e == nil || e.pub == nil {
		return
	}
	id, err := e.pub.Publish(ctx, e.topic, evt)
	metrics.ObserveEvent(string(evt.Type), err == nil)
	if err != nil {
		e.logger.Warn("event publish failed",
			zap.String("type", string(evt.Type)),
			zap.String("post_id", evt.PostID),
			zap.Error(err),
		)
		return
	}
	e.logger.Debug("event published", zap.String("type", string(evt.Type)), zap.String("message_id", id))
}
