package runtime

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/emf-platform/edge-gateway/internal/config"
	"github.com/emf-platform/edge-gateway/internal/server"
)

// Option is a functional option for configuring a Gateway.
type Option func(*Gateway) error

// WithLogger sets the gateway's structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) error {
		g.logger = logger
		return nil
	}
}

// WithConfigPath loads configuration from the given YAML file and watches it
// for changes to the hot-reloadable settings.
func WithConfigPath(path string) Option {
	return func(g *Gateway) error {
		g.configPath = path
		return nil
	}
}

// WithConfig uses an already-built configuration. No file watching.
func WithConfig(cfg *config.Config) Option {
	return func(g *Gateway) error {
		g.cfg = cfg
		return nil
	}
}

// WithCredentialVerifier plugs the external credential verifier into the
// auth stage. Without it the stage passes requests through unauthenticated.
func WithCredentialVerifier(v server.CredentialVerifier) Option {
	return func(g *Gateway) error {
		g.verifier = v
		return nil
	}
}

// controlPlaneHTTPClient builds the instrumented HTTP client used for
// slug-map refreshes.
func controlPlaneHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Timeout:   durationOr(cfg.ControlPlane.Timeout, 10*time.Second),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// includeHTTPClient builds the instrumented HTTP client used for include
// relation fetches. Its timeout bounds each fetch individually.
func includeHTTPClient(cfg *config.Config) *http.Client {
	return &http.Client{
		Timeout:   durationOr(cfg.Include.FetchTimeout, 5*time.Second),
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
