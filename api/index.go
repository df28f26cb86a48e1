// Package handler is the serverless function entrypoint. The host runtime
// calls Handler once per request; the application is built on first use and
// shared by later invocations of the same instance. A failed build is retried
// on the next request.
package handler

import (
	"context"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/JakeFAU/quickblog-api/internal/config"
	"github.com/JakeFAU/quickblog-api/internal/server"
	"github.com/JakeFAU/quickblog-api/internal/web"
)

var (
	mu       sync.Mutex
	app      http.Handler
	buildApp = build
)

func build(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load("")
	if err != nil {
		return nil, err //nolint:wrapcheck // logged as-is
	}
	a, err := server.Build(ctx, &cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck // logged as-is
	}
	return a.Handler(), nil
}

func current() (http.Handler, error) {
	mu.Lock()
	defer mu.Unlock()
	if app != nil {
		return app, nil
	}
	// The app outlives any single request.
	h, err := buildApp(context.Background())
	if err != nil {
		return nil, err
	}
	app = h
	return app, nil
}

// Handler serves one request.
func Handler(w http.ResponseWriter, r *http.Request) {
	h, err := current()
	if err != nil {
		zap.L().Error("application build failed", zap.Error(err))
		web.WriteError(w, http.StatusInternalServerError, web.InternalErrorMessage)
		return
	}
	h.ServeHTTP(w, r)
}
