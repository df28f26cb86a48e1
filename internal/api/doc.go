// Package api hosts the HTTP router of the blog service. Notable routes:
//   - GET / and GET /api for plain liveness checks.
//   - GET /health for a timestamped status payload.
//   - GET /metrics for Prometheus scraping.
//   - /api/admin and /api/blog, delegated to the admin and blog handlers
//     once the shared database pool is available.
//
// Every response passes through request ids, access logging, panic recovery
// and the origin policy. Unmatched routes answer 404 and failures answer a
// generic 500; detail is only logged.
package api
