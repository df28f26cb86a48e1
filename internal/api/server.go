package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/quickblog-api/internal/database"
	"github.com/JakeFAU/quickblog-api/internal/metrics"
	"github.com/JakeFAU/quickblog-api/internal/origin"
	"github.com/JakeFAU/quickblog-api/internal/telemetry"
	"github.com/JakeFAU/quickblog-api/internal/web"
)

const (
	// LivenessText is the body of GET /.
	LivenessText = "API is Working"
	// DatabaseUnavailableMessage is returned when the pool cannot be reached.
	DatabaseUnavailableMessage = "Database connection failed"
	// TimestampFormat is ISO-8601 with millisecond precision.
	TimestampFormat = "2006-01-02T15:04:05.000Z07:00"
)

// Clock supplies the health timestamp.
type Clock interface {
	Now() time.Time
}

// Connector makes sure the shared pool is up before a delegate runs.
type Connector interface {
	EnsureConnected(ctx context.Context) (database.Pool, error)
}

// Options configure NewServer. Admin, Blog, Connector and Clock are required.
type Options struct {
	Environment    string
	Clock          Clock
	Connector      Connector
	Policy         origin.Policy
	CORS           origin.Options
	Admin          http.Handler
	Blog           http.Handler
	Uploads        http.Handler
	TrustProxy     bool
	RequestTimeout time.Duration
	Tracer         trace.TracerProvider
	Logger         *zap.Logger
}

// Server wires middleware, liveness routes and the delegates.
type Server struct {
	router      chi.Router
	clock       Clock
	connector   Connector
	environment string
	logger      *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(opts Options) (*Server, error) {
	switch {
	case opts.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case opts.Connector == nil:
		return nil, fmt.Errorf("database connector is required")
	case opts.Admin == nil || opts.Blog == nil:
		return nil, fmt.Errorf("admin and blog handlers are required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Environment == "" {
		opts.Environment = "development"
	}
	s := &Server{
		clock:       opts.Clock,
		connector:   opts.Connector,
		environment: opts.Environment,
		logger:      opts.Logger,
	}

	r := chi.NewRouter()
	r.Use(web.RequestID)
	if opts.Tracer != nil {
		r.Use(telemetry.Middleware(opts.Tracer))
	}
	if opts.TrustProxy {
		r.Use(chimiddleware.RealIP)
	}
	r.Use(web.AccessLog(opts.Logger))
	r.Use(metrics.Middleware)
	r.Use(web.Recover)
	r.Use(origin.Middleware(opts.Policy, opts.CORS, opts.Logger.Named("cors")))
	if opts.RequestTimeout > 0 {
		r.Use(chimiddleware.Timeout(opts.RequestTimeout))
	}
	r.NotFound(web.NotFound)
	r.MethodNotAllowed(web.NotFound)

	r.Get("/", s.root)
	r.Get("/api", s.apiRoot)
	r.Get("/health", s.health)
	r.Handle("/metrics", metrics.Handler())
	if opts.Uploads != nil {
		r.Handle("/uploads/*", http.StripPrefix("/uploads/", opts.Uploads))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireDatabase)
		r.Mount("/api/admin", opts.Admin)
		r.Mount("/api/blog", opts.Blog)
	})

	s.router = r
	return s, nil
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) root(w http.ResponseWriter, _ *http.Request) {
	web.WriteText(w, http.StatusOK, LivenessText)
}

func (s *Server) apiRoot(w http.ResponseWriter, _ *http.Request) {
	web.WriteJSON(w, http.StatusOK, map[string]string{"message": LivenessText, "status": "success"})
}

type healthResponse struct {
	Status      string `json:"status"`
	Timestamp   string `json:"timestamp"`
	Environment string `json:"environment"`
}

// health never touches the database so that it stays 200 while Postgres is down.
func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	web.WriteJSON(w, http.StatusOK, healthResponse{
		Status:      "OK",
		Timestamp:   s.clock.Now().UTC().Format(TimestampFormat),
		Environment: s.environment,
	})
}

func (s *Server) requireDatabase(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := s.connector.EnsureConnected(r.Context()); err != nil {
			var connErr *database.ConnectionError
			if !errors.As(err, &connErr) {
				connErr = &database.ConnectionError{Err: err}
			}
			web.LoggerFrom(r.Context()).Error("database unavailable",
				zap.String("path", r.URL.Path),
				zap.Error(connErr),
			)
			web.WriteError(w, http.StatusInternalServerError, DatabaseUnavailableMessage)
			return
		}
		next.ServeHTTP(w, r)
	})
}
