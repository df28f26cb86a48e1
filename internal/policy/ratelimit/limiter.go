// Package ratelimit throttles abuse-prone endpoints, such as comment
// submission and admin login, with a token bucket per client.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/JakeFAU/quickblog-api/internal/metrics"
	"github.com/JakeFAU/quickblog-api/internal/web"
)

// TooManyRequestsMessage is the body returned when a client is throttled.
const TooManyRequestsMessage = "Too many requests, please try again later"

// Limiter manages per-key rate limits.
type Limiter struct {
	mu           sync.Mutex
	limiters     map[string]*entry
	defaultRate  rate.Limit
	defaultBurst int
	idle         time.Duration
	lastSweep    time.Time
	now          func() time.Time
}

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Config holds rate limiter configuration. When IdleTTL is positive, Allow
// drops buckets idle for longer than IdleTTL, sweeping at most once per IdleTTL.
type Config struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

// New creates a new Limiter. A non-positive RPS disables limiting.
func New(cfg Config) *Limiter {
	r := rate.Limit(cfg.RPS)
	if cfg.RPS <= 0 {
		r = rate.Inf
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{
		limiters:     make(map[string]*entry),
		defaultRate:  r,
		defaultBurst: burst,
		idle:         cfg.IdleTTL,
		now:          time.Now,
	}
}

// Allow reports whether key may proceed now, consuming a token if so.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	if l.idle > 0 {
		if l.lastSweep.IsZero() {
			l.lastSweep = now
		} else if now.Sub(l.lastSweep) >= l.idle {
			l.prune(now.Add(-l.idle))
			l.lastSweep = now
		}
	}
	e, exists := l.limiters[key]
	if !exists {
		e = &entry{limiter: rate.NewLimiter(l.defaultRate, l.defaultBurst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// Prune forgets keys idle for longer than idle and returns how many it removed.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.prune(l.now().Add(-idle))
}

func (l *Limiter) prune(cutoff time.Time) int {
	removed := 0
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}
	return removed
}

// Len reports how many keys are tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// Middleware rejects requests over the limit with 429, keyed by client IP.
// A nil Limiter lets everything through.
func Middleware(l *Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if l == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !l.Allow(web.ClientIP(r)) {
				route := r.URL.Path
				if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
					route = rctx.RoutePattern()
				}
				metrics.ObserveRateLimited(route)
				w.Header().Set("Retry-After", "1")
				web.WriteJSON(w, http.StatusTooManyRequests, map[string]any{
					"success": false,
					"message": TooManyRequestsMessage,
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
