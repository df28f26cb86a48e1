// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/quickblog-api/internal/logging"
	"github.com/JakeFAU/quickblog-api/internal/telemetry"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server      ServerConfig     `mapstructure:"server"`
	Environment string           `mapstructure:"environment"`
	Deploy      DeployConfig     `mapstructure:"deploy"`
	CORS        CORSConfig       `mapstructure:"cors"`
	Database    DatabaseConfig   `mapstructure:"database"`
	Logging     logging.Config   `mapstructure:"logging"`
	Admin       AdminConfig      `mapstructure:"admin"`
	Storage     StorageConfig    `mapstructure:"storage"`
	PubSub      PubSubConfig     `mapstructure:"pubsub"`
	RateLimit   RateLimitConfig  `mapstructure:"ratelimit"`
	Telemetry   telemetry.Config `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Host                     string `mapstructure:"host"`
	Port                     int    `mapstructure:"port"`
	ReadHeaderTimeoutSeconds int    `mapstructure:"read_header_timeout_seconds"`
	RequestTimeoutSeconds    int    `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds   int    `mapstructure:"shutdown_timeout_seconds"`
	TrustProxy               bool   `mapstructure:"trust_proxy"`
}

// Addr joins host and port into a listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// DeployConfig selects how the process is hosted.
type DeployConfig struct {
	Mode       DeployMode `mapstructure:"mode"`
	Serverless bool       `mapstructure:"serverless"`

	// State is resolved once by Load and never re-read from the environment.
	State BootState `mapstructure:"-"`
}

// CORSConfig describes the origin policy.
type CORSConfig struct {
	Mode             string   `mapstructure:"mode"`
	AllowedOrigins   []string `mapstructure:"allowed_origins"`
	PlatformSuffixes []string `mapstructure:"platform_suffixes"`
	AllowedMethods   []string `mapstructure:"allowed_methods"`
	AllowedHeaders   []string `mapstructure:"allowed_headers"`
	MaxAgeSeconds    int      `mapstructure:"max_age_seconds"`
}

// DatabaseConfig controls access to Postgres.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	Migrate         bool          `mapstructure:"migrate"`
}

// AdminConfig holds the single admin account and token signing settings.
type AdminConfig struct {
	Email       string        `mapstructure:"email"`
	Password    string        `mapstructure:"password"`
	TokenSecret string        `mapstructure:"token_secret"`
	TokenTTL    time.Duration `mapstructure:"token_ttl"`
}

// Enabled reports whether admin login is configured.
func (a AdminConfig) Enabled() bool {
	return a.Email != ""
}

// StorageConfig selects where uploaded post images go.
type StorageConfig struct {
	Backend       string `mapstructure:"backend"`
	Bucket        string `mapstructure:"bucket"`
	LocalDir      string `mapstructure:"local_dir"`
	Prefix        string `mapstructure:"prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
	MaxUploadMB   int    `mapstructure:"max_upload_mb"`
}

// PubSubConfig holds metadata for blog event notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Enabled reports whether a Pub/Sub topic is configured.
func (p PubSubConfig) Enabled() bool {
	return p.ProjectID != "" && p.TopicName != ""
}

// RateLimitConfig throttles login and comment submission per client.
type RateLimitConfig struct {
	Enabled bool    `mapstructure:"enabled"`
	RPS     float64 `mapstructure:"rps"`
	Burst   int     `mapstructure:"burst"`
}

// envAliases maps config keys to the plain environment variables that hosting
// platforms and the existing frontend deployment already set.
var envAliases = map[string][]string{
	"server.port":          {"BLOG_SERVER_PORT", "PORT"},
	"server.host":          {"BLOG_SERVER_HOST", "HOST"},
	"environment":          {"BLOG_ENVIRONMENT", "APP_ENV", "NODE_ENV"},
	"deploy.serverless":    {"BLOG_DEPLOY_SERVERLESS", "VERCEL"},
	"database.dsn":         {"BLOG_DATABASE_DSN", "DATABASE_URL"},
	"admin.email":          {"BLOG_ADMIN_EMAIL", "ADMIN_EMAIL"},
	"admin.password":       {"BLOG_ADMIN_PASSWORD", "ADMIN_PASSWORD"},
	"admin.token_secret":   {"BLOG_ADMIN_TOKEN_SECRET", "JWT_SECRET"},
	"telemetry.project_id": {"BLOG_TELEMETRY_PROJECT_ID", "GOOGLE_CLOUD_PROJECT"},
}

// Load builds a Config from disk/environment and resolves the boot state.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BLOG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, envs := range envAliases {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	cfg.CORS.PlatformSuffixes = splitList(cfg.CORS.PlatformSuffixes)
	cfg.CORS.AllowedMethods = splitList(cfg.CORS.AllowedMethods)
	cfg.CORS.AllowedHeaders = splitList(cfg.CORS.AllowedHeaders)
	if !v.IsSet("logging.development") {
		cfg.Logging.Development = !cfg.IsProduction()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	state, err := cfg.Deploy.Resolve()
	if err != nil {
		return Config{}, err
	}
	cfg.Deploy.State = state

	return cfg, nil
}

// splitList flattens comma separated entries. Viper splits list values read
// from the environment on whitespace only, so "a,b" arrives as one element.
func splitList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_header_timeout_seconds", 5)
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("environment", "development")
	v.SetDefault("deploy.mode", string(ModeAuto))
	v.SetDefault("deploy.serverless", false)
	v.SetDefault("cors.mode", "standard")
	v.SetDefault("cors.allowed_origins", []string{})
	v.SetDefault("cors.platform_suffixes", []string{".vercel.app"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "X-Requested-With"})
	v.SetDefault("cors.max_age_seconds", 600)
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.max_conns", 5)
	v.SetDefault("database.min_conns", 0)
	v.SetDefault("database.max_conn_lifetime", "30m")
	v.SetDefault("database.migrate", true)
	v.SetDefault("logging.max_size_mb", 50)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age_days", 30)
	v.SetDefault("logging.compress", true)
	v.SetDefault("admin.token_ttl", "168h")
	v.SetDefault("storage.backend", "memory")
	v.SetDefault("storage.local_dir", "uploads")
	v.SetDefault("storage.prefix", "blog")
	v.SetDefault("storage.max_upload_mb", 5)
	v.SetDefault("ratelimit.enabled", true)
	v.SetDefault("ratelimit.rps", 1)
	v.SetDefault("ratelimit.burst", 5)
	v.SetDefault("telemetry.service_name", "quickblog-api")
	v.SetDefault("telemetry.version", "dev")
	v.SetDefault("telemetry.sample_ratio", 0.1)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Database.ConnectTimeout <= 0 {
		return fmt.Errorf("database.connect_timeout must be > 0")
	}
	if !c.Deploy.Mode.Valid() {
		return fmt.Errorf("deploy.mode must be one of auto, server, serverless (got %q)", c.Deploy.Mode)
	}
	switch c.CORS.Mode {
	case "strict", "standard", "open":
	default:
		return fmt.Errorf("cors.mode must be one of strict, standard, open (got %q)", c.CORS.Mode)
	}
	if c.Admin.Enabled() {
		if c.Admin.Password == "" {
			return fmt.Errorf("admin.password must be set when admin.email is set")
		}
		if len(c.Admin.TokenSecret) < 32 {
			return fmt.Errorf("admin.token_secret must be at least 32 characters when admin.email is set")
		}
	}
	switch c.Storage.Backend {
	case "memory":
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("storage.local_dir must be set for the local backend")
		}
	case "gcs":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be > 0 when rate limiting is enabled")
	}
	return nil
}

// IsProduction reports whether the environment name is production.
func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// RequestTimeout returns the per-request deadline.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown deadline.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
