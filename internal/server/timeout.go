package server

import (
	"context"
	"net/http"
	"time"
)

// TimeoutMiddleware bounds each request's lifetime. When the deadline fires
// or the client disconnects, the context cancels and in-flight include
// fan-out fetches are abandoned.
func TimeoutMiddleware(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
