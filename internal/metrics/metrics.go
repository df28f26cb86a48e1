// Package metrics exposes Prometheus collectors for the blog API.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	dbConnectAttemptsTotal     *prometheus.CounterVec
	dbConnectDurationSeconds   prometheus.Histogram
	corsDeniedTotal            *prometheus.CounterVec
	eventsPublishedTotal       *prometheus.CounterVec
	rateLimitedTotal           *prometheus.CounterVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		dbConnectAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_db_connect_attempts_total",
				Help: "Database connection attempts, labeled by result.",
			},
			[]string{"result"},
		)

		dbConnectDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "blog_db_connect_duration_seconds",
				Help:    "Time spent establishing the shared database pool.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
		)

		corsDeniedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_cors_denied_total",
				Help: "Requests rejected by the origin policy, labeled by origin host.",
			},
			[]string{"origin"},
		)

		eventsPublishedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_events_published_total",
				Help: "Blog events handed to the publisher, labeled by type and result.",
			},
			[]string{"type", "result"},
		)

		rateLimitedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "blog_rate_limited_total",
				Help: "Requests rejected by the per-client rate limiter, labeled by route.",
			},
			[]string{"route"},
		)
	})
}

// SanitizeOrigin extracts a lowercase hostname from an Origin header value.
// It returns "unknown" if the value is not a URL with a host.
func SanitizeOrigin(origin string) string {
	if !strings.Contains(origin, "://") {
		origin = "http://" + origin
	}
	u, err := url.Parse(origin)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveDBConnect records one dial of the shared pool.
func ObserveDBConnect(ok bool, duration time.Duration) {
	Init()
	result := "success"
	if !ok {
		result = "error"
	}
	dbConnectAttemptsTotal.WithLabelValues(result).Inc()
	dbConnectDurationSeconds.Observe(duration.Seconds())
}

// ObserveCORSDenied counts a request refused by the origin policy.
func ObserveCORSDenied(origin string) {
	Init()
	corsDeniedTotal.WithLabelValues(SanitizeOrigin(origin)).Inc()
}

// ObserveEvent counts a publish attempt for the given event type.
func ObserveEvent(eventType string, ok bool) {
	Init()
	result := "success"
	if !ok {
		result = "error"
	}
	eventsPublishedTotal.WithLabelValues(eventType, result).Inc()
}

// ObserveRateLimited counts a throttled request.
func ObserveRateLimited(route string) {
	Init()
	rateLimitedTotal.WithLabelValues(route).Inc()
}
