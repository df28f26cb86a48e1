package web

import (
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Client-facing messages. Internal detail never reaches the body.
const (
	RouteNotFoundMessage = "Route not found"
	InternalErrorMessage = "Something went wrong!"
)

// NotFoundError reports a request that matched no route.
type NotFoundError struct {
	Method string
	Path   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no route for %s %s", e.Method, e.Path)
}

// UnhandledError wraps anything that reached the terminal handler.
type UnhandledError struct {
	Err   error
	Panic bool
}

func (e *UnhandledError) Error() string {
	if e.Panic {
		return fmt.Sprintf("panic: %v", e.Err)
	}
	return fmt.Sprintf("unhandled: %v", e.Err)
}

func (e *UnhandledError) Unwrap() error { return e.Err }

// NotFound answers unmatched routes and wrong methods alike.
func NotFound(w http.ResponseWriter, r *http.Request) {
	err := &NotFoundError{Method: r.Method, Path: r.URL.Path}
	LoggerFrom(r.Context()).Debug("route not found", zap.Error(err))
	WriteError(w, http.StatusNotFound, RouteNotFoundMessage)
}

// Fail is the terminal error handler. It logs err with full detail and
// answers with a generic 500.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	var unhandled *UnhandledError
	if !errors.As(err, &unhandled) {
		unhandled = &UnhandledError{Err: err}
	}
	LoggerFrom(r.Context()).Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.Bool("panic", unhandled.Panic),
		zap.Error(unhandled.Err),
	)
	if headerWritten(w) {
		return
	}
	WriteError(w, http.StatusInternalServerError, InternalErrorMessage)
}

// HandlerFunc is an http handler that may fail.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// Handle adapts h so that a returned error goes to Fail.
func Handle(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := h(w, r); err != nil {
			Fail(w, r, err)
		}
	}
}
