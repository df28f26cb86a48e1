package admin

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/quickblog-api/internal/blog"
	"github.com/JakeFAU/quickblog-api/internal/web"
)

const maxJSONBody = 1 << 16

// Handler serves /api/admin.
type Handler struct {
	auth         *Authenticator
	svc          *blog.Service
	loginLimiter blog.Middleware
}

// NewHandler wires the admin routes. loginLimiter may be nil.
func NewHandler(auth *Authenticator, svc *blog.Service, loginLimiter blog.Middleware) (*Handler, error) {
	if auth == nil || svc == nil {
		return nil, fmt.Errorf("authenticator and blog service are required")
	}
	if loginLimiter == nil {
		loginLimiter = func(next http.Handler) http.Handler { return next }
	}
	return &Handler{auth: auth, svc: svc, loginLimiter: loginLimiter}, nil
}

// Routes returns the router to mount at /api/admin.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.With(h.loginLimiter).Post("/login", web.Handle(h.login))
	r.Group(func(r chi.Router) {
		r.Use(h.auth.Require)
		r.Get("/blogs", web.Handle(h.listPosts))
		r.Get("/comments", web.Handle(h.listComments))
		r.Get("/dashboard", web.Handle(h.dashboard))
		r.Post("/delete-comment", web.Handle(h.deleteComment))
		r.Post("/approve-comment", web.Handle(h.approveComment))
	})
	return r
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) error {
	var req loginRequest
	if err := web.DecodeJSON(w, r, &req, maxJSONBody); err != nil {
		web.WriteJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": "Invalid JSON body"})
		return nil
	}
	token, err := h.auth.Login(req.Email, req.Password)
	switch {
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrDisabled):
		web.LoggerFrom(r.Context()).Info("admin login rejected", zap.String("client_ip", web.ClientIP(r)))
		web.WriteJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid Credentials"})
		return nil
	case err != nil:
		return err
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
	return nil
}

func (h *Handler) listPosts(w http.ResponseWriter, r *http.Request) error {
	posts, err := h.svc.AllPosts(r.Context())
	if err != nil {
		return err
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "blogs": posts})
	return nil
}

func (h *Handler) listComments(w http.ResponseWriter, r *http.Request) error {
	comments, err := h.svc.AllComments(r.Context())
	if err != nil {
		return err
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "comments": comments})
	return nil
}

func (h *Handler) dashboard(w http.ResponseWriter, r *http.Request) error {
	d, err := h.svc.Dashboard(r.Context())
	if err != nil {
		return err
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "dashboardData": d})
	return nil
}

type idRequest struct {
	ID string `json:"id"`
}

func (h *Handler) deleteComment(w http.ResponseWriter, r *http.Request) error {
	var req idRequest
	if err := web.DecodeJSON(w, r, &req, maxJSONBody); err != nil {
		return blog.Respond(w, &blog.ValidationError{Field: "body", Message: "Invalid JSON body"})
	}
	if err := h.svc.DeleteComment(r.Context(), req.ID); err != nil {
		return blog.Respond(w, err)
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Comment deleted successfully"})
	return nil
}

func (h *Handler) approveComment(w http.ResponseWriter, r *http.Request) error {
	var req idRequest
	if err := web.DecodeJSON(w, r, &req, maxJSONBody); err != nil {
		return blog.Respond(w, &blog.ValidationError{Field: "body", Message: "Invalid JSON body"})
	}
	if _, err := h.svc.ApproveComment(r.Context(), req.ID); err != nil {
		return blog.Respond(w, err)
	}
	web.WriteJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Comment approved successfully"})
	return nil
}
