package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/emf-platform/edge-gateway/internal/pipeline"
	"github.com/emf-platform/edge-gateway/internal/tenant"
)

// Server hosts the assembled pipeline in front of the route table: the
// locally served health endpoint plus the catch-all upstream proxy.
type Server struct {
	Handler http.Handler
	Port    int

	logger     *slog.Logger
	httpServer *http.Server
}

// New assembles the server. The pipeline chain wraps the router, so every
// stage runs before route matching and sees the pre-routing path.
func New(port int, logger *slog.Logger, chain *pipeline.Chain, upstream http.Handler, directory *tenant.Directory) *Server {
	r := chi.NewRouter()
	r.Get("/actuator/health", HealthHandler(directory))
	r.Post("/internal/tenants/refresh", RefreshHandler(directory, logger))
	r.Handle("/*", upstream)

	handler := otelhttp.NewHandler(chain.Then(r), "edge-gateway")

	return &Server{
		Handler: handler,
		Port:    port,
		logger:  logger,
	}
}

// Start serves until Shutdown is called or the listener fails.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.Port),
		Handler: s.Handler,
	}
	s.logger.Info("starting server", slog.Int("port", s.Port))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// RefreshHandler is the administrative signal for an immediate tenant
// directory refresh, typically called after a provisioning event upstream.
// The refresh itself happens asynchronously in the directory's run loop.
func RefreshHandler(directory *tenant.Directory, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if directory != nil {
			directory.Kick()
		}
		logger.Info("tenant directory refresh requested")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"status":"refresh scheduled"}`))
	}
}

// HealthHandler serves the liveness endpoint, reporting the tenant
// directory's snapshot state. This is the path the IP rate limiter guards.
func HealthHandler(directory *tenant.Directory) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := struct {
			Status    string `json:"status"`
			Directory struct {
				Slugs       int    `json:"slugs"`
				RefreshedAt string `json:"refreshedAt,omitempty"`
			} `json:"tenantDirectory"`
		}{Status: "UP"}

		if directory != nil {
			status.Directory.Slugs = directory.Size()
			if refreshed, ok := directory.LastRefreshed(); ok {
				status.Directory.RefreshedAt = refreshed.UTC().Format(time.RFC3339)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(status)
	}
}
