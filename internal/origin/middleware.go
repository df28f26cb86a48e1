package origin

import (
	"net/http"

	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/JakeFAU/quickblog-api/internal/metrics"
	"github.com/JakeFAU/quickblog-api/internal/web"
)

// DeniedMessage is the body returned for refused origins.
const DeniedMessage = "Not allowed by CORS"

// Options are the header allow-lists advertised to permitted origins.
type Options struct {
	AllowedMethods []string
	AllowedHeaders []string
	MaxAgeSeconds  int
}

// Middleware rejects denied origins with 403 and no CORS headers, and lets
// rs/cors answer preflights and decorate responses for allowed ones.
func Middleware(policy Policy, opts Options, logger *zap.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := cors.New(cors.Options{
		AllowOriginFunc:      policy.Allows,
		AllowedMethods:       opts.AllowedMethods,
		AllowedHeaders:       opts.AllowedHeaders,
		MaxAge:               opts.MaxAgeSeconds,
		AllowCredentials:     true,
		OptionsSuccessStatus: http.StatusOK,
	})
	return func(next http.Handler) http.Handler {
		allowed := c.Handler(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			o := r.Header.Get("Origin")
			if !policy.Allows(o) {
				err := &PolicyError{Origin: o}
				logger.Warn("origin rejected", zap.Error(err), zap.String("path", r.URL.Path))
				metrics.ObserveCORSDenied(o)
				web.WriteError(w, http.StatusForbidden, DeniedMessage)
				return
			}
			allowed.ServeHTTP(w, r)
		})
	}
}
