// Package main hosts the blog API entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes liveness (/, /api, /health), Prometheus metrics, and mounts the
//     admin (/api/admin) and blog (/api/blog) routers. Every request passes request ids, zap access logging,
//     panic recovery and the origin policy (internal/origin) before routing.
//   - Database: internal/database.Connector owns the shared pgx pool. The first caller dials, concurrent callers
//     share that attempt, and a failed attempt is retried by the next request. Migrations are embedded and run
//     with goose when the pool is first opened.
//   - Domain: internal/blog holds posts and comments, renders Markdown with goldmark, stores cover images through
//     internal/media (memory/local/GCS) and announces changes through internal/events (memory or Pub/Sub).
//   - Admin: internal/admin issues signed tokens for the single configured administrator.
//
// Boot states:
//   - Listening: the database is connected before the port is bound. A failed connection exits with status 1.
//   - Passive: chosen when deploy.mode=serverless, or deploy.mode=auto and VERCEL is set. Nothing listens; the
//     host runtime calls the handler exported from api/index.go.
//
// Quick checklist:
//   - Configure env vars: DATABASE_URL, PORT, NODE_ENV, ADMIN_EMAIL, ADMIN_PASSWORD, JWT_SECRET, and
//     BLOG_CORS_ALLOWED_ORIGINS / BLOG_STORAGE_* / BLOG_PUBSUB_* as needed.
//   - Run locally: go run ./cmd/blogapi --config config.yaml, or go run ./cmd/blogapi migrate.
package main
