package admin_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quickblog-api/internal/admin"
	"github.com/JakeFAU/quickblog-api/internal/blog"
	"github.com/JakeFAU/quickblog-api/internal/clock/system"
	"github.com/JakeFAU/quickblog-api/internal/id/uuid"
	"github.com/JakeFAU/quickblog-api/internal/markdown"
	memstore "github.com/JakeFAU/quickblog-api/internal/storage/memory"
)

type env struct {
	router http.Handler
	svc    *blog.Service
	token  string
}

func newEnv(t *testing.T) env {
	t.Helper()
	auth, err := admin.NewAuthenticator(admin.Config{
		Email:       "admin@example.com",
		Password:    "hunter2",
		TokenSecret: "0123456789abcdef0123456789abcdef",
		TokenTTL:    time.Hour,
	})
	require.NoError(t, err)
	svc, err := blog.NewService(blog.Deps{
		Store:    memstore.NewPostStore(),
		IDs:      uuid.New(),
		Clock:    system.New(),
		Renderer: markdown.New(markdown.Options{}),
	})
	require.NoError(t, err)
	h, err := admin.NewHandler(auth, svc, nil)
	require.NoError(t, err)
	token, err := auth.Issue("admin@example.com")
	require.NoError(t, err)
	return env{router: h.Routes(), svc: svc, token: token}
}

func (e env) call(t *testing.T, method, path string, auth bool, body any) (int, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth {
		req.Header.Set("Authorization", "Bearer "+e.token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestLoginRoute(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	code, body := e.call(t, http.MethodPost, "/login", false,
		map[string]string{"email": "admin@example.com", "password": "hunter2"})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, true, body["success"])
	require.NotEmpty(t, body["token"])

	code, body = e.call(t, http.MethodPost, "/login", false,
		map[string]string{"email": "admin@example.com", "password": "nope"})
	require.Equal(t, http.StatusUnauthorized, code)
	require.Equal(t, "Invalid Credentials", body["message"])
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	for _, path := range []string{"/blogs", "/comments", "/dashboard"} {
		code, body := e.call(t, http.MethodGet, path, false, nil)
		require.Equal(t, http.StatusUnauthorized, code, path)
		require.Equal(t, "Not authorized", body["message"])
	}
}

func TestModerationFlow(t *testing.T) {
	t.Parallel()

	e := newEnv(t)
	ctx := context.Background()
	post, err := e.svc.CreatePost(ctx, blog.NewPost{Title: "Hello", Description: "d", Category: "c", IsPublished: true}, nil)
	require.NoError(t, err)
	_, err = e.svc.CreatePost(ctx, blog.NewPost{Title: "Draft", Description: "d", Category: "c"}, nil)
	require.NoError(t, err)
	c, err := e.svc.AddComment(ctx, blog.NewComment{PostID: post.ID, Name: "Ada", Content: "Nice"})
	require.NoError(t, err)

	code, body := e.call(t, http.MethodGet, "/blogs", true, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["blogs"], 2)

	code, body = e.call(t, http.MethodGet, "/dashboard", true, nil)
	require.Equal(t, http.StatusOK, code)
	dash := body["dashboardData"].(map[string]any)
	require.EqualValues(t, 2, dash["blogs"])
	require.EqualValues(t, 1, dash["comments"])
	require.EqualValues(t, 1, dash["drafts"])

	code, body = e.call(t, http.MethodPost, "/approve-comment", true, map[string]string{"id": c.ID})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "Comment approved successfully", body["message"])

	approved, err := e.svc.ApprovedComments(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, approved, 1)

	code, body = e.call(t, http.MethodGet, "/comments", true, nil)
	require.Equal(t, http.StatusOK, code)
	require.Len(t, body["comments"], 1)

	code, _ = e.call(t, http.MethodPost, "/delete-comment", true, map[string]string{"id": c.ID})
	require.Equal(t, http.StatusOK, code)

	code, body = e.call(t, http.MethodPost, "/delete-comment", true, map[string]string{"id": c.ID})
	require.Equal(t, http.StatusNotFound, code)
	require.Equal(t, false, body["success"])
}
