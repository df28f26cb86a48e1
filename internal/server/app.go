// Package server builds the blog service from configuration and runs it in
// one of two boot states: Listening binds a TCP listener after an eager
// database connect, Passive never listens and only exposes the handler to a
// host runtime.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	pubsub "cloud.google.com/go/pubsub/v2"
	"cloud.google.com/go/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/quickblog-api/internal/admin"
	"github.com/JakeFAU/quickblog-api/internal/api"
	"github.com/JakeFAU/quickblog-api/internal/blog"
	"github.com/JakeFAU/quickblog-api/internal/clock/system"
	"github.com/JakeFAU/quickblog-api/internal/config"
	"github.com/JakeFAU/quickblog-api/internal/database"
	"github.com/JakeFAU/quickblog-api/internal/events"
	"github.com/JakeFAU/quickblog-api/internal/hash/sha256"
	"github.com/JakeFAU/quickblog-api/internal/id/uuid"
	"github.com/JakeFAU/quickblog-api/internal/logging"
	"github.com/JakeFAU/quickblog-api/internal/markdown"
	"github.com/JakeFAU/quickblog-api/internal/media"
	"github.com/JakeFAU/quickblog-api/internal/metrics"
	"github.com/JakeFAU/quickblog-api/internal/origin"
	"github.com/JakeFAU/quickblog-api/internal/policy/ratelimit"
	memorypublisher "github.com/JakeFAU/quickblog-api/internal/publisher/memory"
	gcppublisher "github.com/JakeFAU/quickblog-api/internal/publisher/pubsub"
	gcsstorage "github.com/JakeFAU/quickblog-api/internal/storage/gcs"
	localstorage "github.com/JakeFAU/quickblog-api/internal/storage/local"
	memorystorage "github.com/JakeFAU/quickblog-api/internal/storage/memory"
	pgstore "github.com/JakeFAU/quickblog-api/internal/storage/postgres"
	"github.com/JakeFAU/quickblog-api/internal/telemetry"
)

// limiterIdle is how long a client bucket survives without traffic.
const limiterIdle = 10 * time.Minute

type dbConnector interface {
	EnsureConnected(ctx context.Context) (database.Pool, error)
	Close()
}

// App contains the application's dependencies.
type App struct {
	cfg             *config.Config
	logger          *zap.Logger
	handler         http.Handler
	db              dbConnector
	pubsubClient    *pubsub.Client
	pubsubPublisher *gcppublisher.Publisher
	storage         *storage.Client
	tracer          *sdktrace.TracerProvider
	listen          func(network, address string) (net.Listener, error)
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	type sanitizedConfig struct {
		Addr        string `json:"addr"`
		Environment string `json:"environment"`
		BootState   string `json:"boot_state"`
		CORSMode    string `json:"cors_mode"`
		Storage     string `json:"storage"`
		AdminLogin  bool   `json:"admin_login"`
	}
	logger.Info("creating application", zap.Any("config", sanitizedConfig{
		Addr:        cfg.Server.Addr(),
		Environment: cfg.Environment,
		BootState:   cfg.Deploy.State.String(),
		CORSMode:    cfg.CORS.Mode,
		Storage:     cfg.Storage.Backend,
		AdminLogin:  cfg.Admin.Enabled(),
	}))
	return &App{cfg: cfg, logger: logger, listen: net.Listen}, nil
}

// Build creates the application's dependencies. Nothing here dials the
// database; the pool is opened by Run or by the first request that needs it.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	app, err := NewApp(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("app init failed: %w", err)
	}

	app.tracer, err = telemetry.InitTracerProvider(ctx, cfg.Telemetry)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}

	connector := database.NewConnector(
		database.PostgresDialer(database.PostgresConfig{
			DSN:             cfg.Database.DSN,
			MaxConns:        cfg.Database.MaxConns,
			MinConns:        cfg.Database.MinConns,
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
			Migrate:         cfg.Database.Migrate,
		}, logger.Named("database")),
		cfg.Database.ConnectTimeout,
		logger.Named("database"),
	)
	app.db = connector

	uploader, uploads, err := setupMedia(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	publisher, err := setupPublisher(ctx, app)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}

	store, err := pgstore.NewPostStore(connector)
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("post store init failed: %w", err)
	}
	clock := system.New()
	svc, err := blog.NewService(blog.Deps{
		Store:    store,
		IDs:      uuid.New(),
		Clock:    clock,
		Renderer: markdown.New(markdown.Options{}),
		Images:   uploader,
		Events:   events.NewEmitter(publisher, cfg.PubSub.TopicName, logger.Named("events")),
	})
	if err != nil {
		app.closeInfrastructure()
		return nil, fmt.Errorf("blog service init failed: %w", err)
	}

	handler, err := setupRoutes(app, svc, connector, clock, uploader.MaxBytes(), uploads)
	if err != nil {
		app.closeInfrastructure()
		return nil, err
	}
	app.handler = handler
	return app, nil
}

func setupMedia(ctx context.Context, app *App) (*media.Uploader, http.Handler, error) {
	cfg := app.cfg.Storage
	mediaCfg := media.Config{
		Prefix:        cfg.Prefix,
		PublicBaseURL: cfg.PublicBaseURL,
		MaxBytes:      int64(cfg.MaxUploadMB) << 20,
	}
	var (
		store   media.BlobStore
		uploads http.Handler
	)
	switch cfg.Backend {
	case "gcs":
		app.logger.Info("using GCS storage backend", zap.String("bucket", cfg.Bucket))
		client, err := storage.NewClient(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		app.storage = client
		gcs, err := gcsstorage.New(client, gcsstorage.Config{
			Bucket:       cfg.Bucket,
			CacheControl: "public, max-age=31536000, immutable",
		})
		if err != nil {
			return nil, nil, fmt.Errorf("gcs blob store init failed: %w", err)
		}
		if mediaCfg.PublicBaseURL == "" {
			mediaCfg.PublicBaseURL = gcs.PublicURL("")
		}
		store = gcs
	case "local":
		app.logger.Info("using local storage backend", zap.String("path", cfg.LocalDir))
		local, err := localstorage.New(localstorage.Config{BaseDir: cfg.LocalDir})
		if err != nil {
			return nil, nil, fmt.Errorf("local blob store init failed: %w", err)
		}
		if mediaCfg.PublicBaseURL == "" {
			mediaCfg.PublicBaseURL = "/uploads"
		}
		uploads = http.FileServer(http.Dir(local.Dir()))
		store = local
	default:
		app.logger.Info("using in-memory storage backend")
		store = memorystorage.NewBlobStore()
	}

	uploader, err := media.NewUploader(store, sha256.New(), mediaCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("media uploader init failed: %w", err)
	}
	return uploader, uploads, nil
}

func setupPublisher(ctx context.Context, app *App) (events.Publisher, error) {
	if !app.cfg.PubSub.Enabled() {
		app.logger.Warn("No Pub/Sub topic configured, using in-memory publisher")
		return memorypublisher.New(), nil
	}
	var err error
	app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client init failed: %w", err)
	}
	app.pubsubPublisher = gcppublisher.New(app.pubsubClient.Publisher(app.cfg.PubSub.TopicName))
	app.logger.Info(
		"Pub/Sub publisher initialized",
		zap.String("project", app.cfg.PubSub.ProjectID),
		zap.String("topic", app.cfg.PubSub.TopicName),
	)
	return app.pubsubPublisher, nil
}

func setupRoutes(
	app *App,
	svc *blog.Service,
	connector *database.Connector,
	clock *system.Clock,
	maxUpload int64,
	uploads http.Handler,
) (http.Handler, error) {
	cfg := app.cfg

	var throttle blog.Middleware
	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(ratelimit.Config{
			RPS:     cfg.RateLimit.RPS,
			Burst:   cfg.RateLimit.Burst,
			IdleTTL: limiterIdle,
		})
		throttle = ratelimit.Middleware(limiter)
	}

	auth, err := admin.NewAuthenticator(admin.Config{
		Email:       cfg.Admin.Email,
		Password:    cfg.Admin.Password,
		TokenSecret: cfg.Admin.TokenSecret,
		TokenTTL:    cfg.Admin.TokenTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("admin auth init failed: %w", err)
	}
	if !auth.Enabled() {
		app.logger.Warn("admin login disabled; set admin.email to enable post management")
	}

	blogHandler, err := blog.NewHandler(svc, blog.HandlerOptions{
		RequireAdmin:   auth.Require,
		CommentLimiter: throttle,
		MaxUploadBytes: maxUpload,
	})
	if err != nil {
		return nil, fmt.Errorf("blog handler init failed: %w", err)
	}
	adminHandler, err := admin.NewHandler(auth, svc, throttle)
	if err != nil {
		return nil, fmt.Errorf("admin handler init failed: %w", err)
	}

	policy, err := origin.NewPolicy(origin.Mode(cfg.CORS.Mode), cfg.CORS.AllowedOrigins, cfg.CORS.PlatformSuffixes)
	if err != nil {
		return nil, fmt.Errorf("cors policy init failed: %w", err)
	}

	srv, err := api.NewServer(api.Options{
		Environment: cfg.Environment,
		Clock:       clock,
		Connector:   connector,
		Policy:      policy,
		CORS: origin.Options{
			AllowedMethods: cfg.CORS.AllowedMethods,
			AllowedHeaders: cfg.CORS.AllowedHeaders,
			MaxAgeSeconds:  cfg.CORS.MaxAgeSeconds,
		},
		Admin:          adminHandler.Routes(),
		Blog:           blogHandler.Routes(),
		Uploads:        uploads,
		TrustProxy:     cfg.Server.TrustProxy,
		RequestTimeout: cfg.RequestTimeout(),
		Tracer:         app.tracer,
		Logger:         app.logger.Named("api"),
	})
	if err != nil {
		return nil, fmt.Errorf("api server init failed: %w", err)
	}
	return srv.Handler(), nil
}

// Handler is the fully wired HTTP handler.
func (a *App) Handler() http.Handler {
	return a.handler
}

// State is the resolved boot state.
func (a *App) State() config.BootState {
	return a.cfg.Deploy.State
}

// Run serves until ctx is canceled or SIGINT/SIGTERM arrives. In the Passive
// state it returns immediately without listening. In the Listening state a
// failed eager connect returns a *database.ConnectionError before any
// listener is bound.
func (a *App) Run(ctx context.Context) error {
	if a.State() == config.StatePassive {
		a.logger.Info("passive boot state, not binding a listener")
		return nil
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if _, err := a.db.EnsureConnected(ctx); err != nil {
		a.logger.Error("initial database connection failed", zap.Error(err))
		return err //nolint:wrapcheck // callers match *database.ConnectionError
	}
	a.logger.Info("database connected")

	ln, err := a.listen("tcp", a.cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Server.Addr(), err)
	}

	srv := &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: time.Duration(a.cfg.Server.ReadHeaderTimeoutSeconds) * time.Second,
		ErrorLog:          zap.NewStdLog(a.logger.Named("http")),
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server listening",
			zap.String("addr", ln.Addr().String()),
			zap.String("environment", a.cfg.Environment),
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			stop()
		}
		close(serveErr)
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	if err := <-serveErr; err != nil {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// Close releases clients and the database pool.
func (a *App) Close() {
	a.closeInfrastructure()
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
	a.logger.Info("shutdown complete")
}

func (a *App) closeInfrastructure() {
	if a.pubsubPublisher != nil {
		a.pubsubPublisher.Stop()
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.db != nil {
		a.db.Close()
	}
	if a.tracer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.tracer.Shutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
}
