package server

import (
	"log/slog"
	"net/http"

	"github.com/emf-platform/edge-gateway/internal/ratelimit"
)

// RateLimitMiddleware applies per-IP limiting to the configured
// unauthenticated path classes. It runs before authentication; paths outside
// the rate-limited classes pass through without touching the limiter.
func RateLimitMiddleware(limiter *ratelimit.Limiter, classifier *ratelimit.PathClassifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !classifier.ShouldLimit(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			ip := ratelimit.ClientIP(r)
			decision := limiter.Check(ip)
			if decision.Allowed {
				next.ServeHTTP(w, r)
				return
			}

			logger.Warn("ip rate limit exceeded",
				slog.String("client_ip", ip),
				slog.String("path", r.URL.Path))
			writeTooManyRequests(w, r.URL.Path, decision.RetryAfter)
		})
	}
}
