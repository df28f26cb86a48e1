package blog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/JakeFAU/quickblog-api/internal/web"
)

const maxJSONBody = 1 << 20

// Middleware is a standard http middleware.
type Middleware func(http.Handler) http.Handler

// Handler serves /api/blog.
type Handler struct {
	svc            *Service
	requireAdmin   Middleware
	commentLimiter Middleware
	maxUpload      int64
}

// HandlerOptions configure the blog routes.
type HandlerOptions struct {
	// RequireAdmin guards post management. Required.
	RequireAdmin Middleware
	// CommentLimiter throttles comment submission. Optional.
	CommentLimiter Middleware
	// MaxUploadBytes caps the multipart body of /add.
	MaxUploadBytes int64
}

// NewHandler builds the blog routes on top of svc.
func NewHandler(svc *Service, opts HandlerOptions) (*Handler, error) {
	if svc == nil {
		return nil, fmt.Errorf("blog service is required")
	}
	if opts.RequireAdmin == nil {
		return nil, fmt.Errorf("admin middleware is required")
	}
	if opts.CommentLimiter == nil {
		opts.CommentLimiter = func(next http.Handler) http.Handler { return next }
	}
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = 5 << 20
	}
	return &Handler{
		svc:            svc,
		requireAdmin:   opts.RequireAdmin,
		commentLimiter: opts.CommentLimiter,
		maxUpload:      opts.MaxUploadBytes,
	}, nil
}

// Routes returns the router to mount at /api/blog.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/all", web.Handle(h.listPublished))
	r.With(h.commentLimiter).Post("/add-comment", web.Handle(h.addComment))
	r.Post("/comments", web.Handle(h.listComments))

	r.Group(func(r chi.Router) {
		r.Use(h.requireAdmin)
		r.Post("/add", web.Handle(h.addPost))
		r.Post("/delete", web.Handle(h.deletePost))
		r.Post("/toggle-publish", web.Handle(h.togglePublish))
	})

	r.Get("/{postID}", web.Handle(h.getPost))
	return r
}

func (h *Handler) listPublished(w http.ResponseWriter, r *http.Request) error {
	posts, err := h.svc.PublishedPosts(r.Context())
	if err != nil {
		return err
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "blogs": posts})
	return nil
}

func (h *Handler) getPost(w http.ResponseWriter, r *http.Request) error {
	post, err := h.svc.PublishedPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		return Respond(w, err)
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "blog": post})
	return nil
}

func (h *Handler) addPost(w http.ResponseWriter, r *http.Request) error {
	in, image, err := h.readNewPost(w, r)
	if err != nil {
		return Respond(w, err)
	}
	if image != nil {
		defer image.Close() //nolint:errcheck // multipart temp file
	}

	var body io.Reader
	if image != nil {
		body = image
	}
	post, err := h.svc.CreatePost(r.Context(), in, body)
	if err != nil {
		return Respond(w, err)
	}
	web.WriteJSON(w, http.StatusCreated, map[string]any{
		"success": true,
		"message": "Blog added successfully",
		"blog":    post,
	})
	return nil
}

// readNewPost accepts either a multipart form with a "blog" JSON field and
// an optional "image" file, or a plain JSON body.
func (h *Handler) readNewPost(w http.ResponseWriter, r *http.Request) (NewPost, io.ReadCloser, error) {
	var in NewPost
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		if err := web.DecodeJSON(w, r, &in, maxJSONBody); err != nil {
			return NewPost{}, nil, invalid("body", "Invalid JSON body")
		}
		return in, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+maxJSONBody)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return NewPost{}, nil, invalid("image", "Image is too large")
		}
		return NewPost{}, nil, invalid("body", "Invalid multipart body")
	}
	if err := json.Unmarshal([]byte(r.FormValue("blog")), &in); err != nil {
		return NewPost{}, nil, invalid("blog", "Invalid blog data")
	}
	file, _, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return in, nil, nil
	case err != nil:
		return NewPost{}, nil, invalid("image", "Invalid image upload")
	}
	return in, file, nil
}

type idRequest struct {
	ID string `json:"id"`
}

func (h *Handler) deletePost(w http.ResponseWriter, r *http.Request) error {
	var req idRequest
	if err := web.DecodeJSON(w, r, &req, maxJSONBody); err != nil {
		return Respond(w, invalid("body", "Invalid JSON body"))
	}
	if err := h.svc.DeletePost(r.Context(), req.ID); err != nil {
		return Respond(w, err)
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Blog deleted successfully"})
	return nil
}

func (h *Handler) togglePublish(w http.ResponseWriter, r *http.Request) error {
	var req idRequest
	if err := web.DecodeJSON(w, r, &req, maxJSONBody); err != nil {
		return Respond(w, invalid("body", "Invalid JSON body"))
	}
	post, err := h.svc.TogglePublish(r.Context(), req.ID)
	if err != nil {
		return Respond(w, err)
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Blog status updated",
		"blog":    post,
	})
	return nil
}

func (h *Handler) addComment(w http.ResponseWriter, r *http.Request) error {
	var in NewComment
	if err := web.DecodeJSON(w, r, &in, maxJSONBody); err != nil {
		return Respond(w, invalid("body", "Invalid JSON body"))
	}
	if _, err := h.svc.AddComment(r.Context(), in); err != nil {
		return Respond(w, err)
	}
	web.WriteJSON(w, http.StatusCreated, map[string]any{"success": true, "message": "Comment added for review"})
	return nil
}

type commentsRequest struct {
	PostID string `json:"blogId"`
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) error {
	var req commentsRequest
	if err := web.DecodeJSON(w, r, &req, maxJSONBody); err != nil {
		return Respond(w, invalid("body", "Invalid JSON body"))
	}
	comments, err := h.svc.ApprovedComments(r.Context(), req.PostID)
	if err != nil {
		return Respond(w, err)
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "comments": comments})
	return nil
}

// Respond writes the client-facing envelope for validation and not-found
// errors and returns any other error for the terminal handler.
func Respond(w http.ResponseWriter, err error) error {
	var verr *ValidationError
	switch {
	case errors.As(err, &verr):
		web.WriteJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": verr.Message})
		return nil
	case errors.Is(err, ErrNotFound):
		web.WriteJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": "Not found"})
		return nil
	}
	return err
}
