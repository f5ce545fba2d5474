// Package runtime provides the Gateway struct and lifecycle management for
// the edge gateway: it assembles the filter pipeline, starts the background
// refresh and sweep loops, and owns graceful shutdown.
package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/emf-platform/edge-gateway/internal/collections"
	"github.com/emf-platform/edge-gateway/internal/config"
	"github.com/emf-platform/edge-gateway/internal/controlplane"
	"github.com/emf-platform/edge-gateway/internal/jsonapi"
	"github.com/emf-platform/edge-gateway/internal/pipeline"
	"github.com/emf-platform/edge-gateway/internal/proxy"
	"github.com/emf-platform/edge-gateway/internal/ratelimit"
	"github.com/emf-platform/edge-gateway/internal/server"
	"github.com/emf-platform/edge-gateway/internal/tenant"
)

// Gateway is the running edge gateway. It can be embedded in larger
// applications or run standalone from cmd/gateway.
type Gateway struct {
	cfg        *config.Config
	configPath string
	logger     *slog.Logger
	verifier   server.CredentialVerifier

	directory *tenant.Directory
	limiter   *ratelimit.Limiter
	extractor *server.SlugExtractor
	srv       *server.Server

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
}

// New creates a Gateway from the given options. Configuration comes from
// WithConfig, or is loaded from the WithConfigPath file (with environment
// overrides) otherwise.
func New(opts ...Option) (*Gateway, error) {
	g := &Gateway{logger: slog.Default()}

	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, fmt.Errorf("apply option: %w", err)
		}
	}

	if g.cfg == nil {
		cfg, err := config.Load(g.configPath)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		g.cfg = cfg
	}

	return g, nil
}

// Start assembles the pipeline, launches the background loops (directory
// refresh, rate-limit sweep, config watch), and begins serving.
func (g *Gateway) Start(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.ctx, g.cancel = context.WithCancel(ctx)
	cfg := g.cfg

	cpClient := controlplane.NewClient(cfg.ControlPlane.BaseURL, controlPlaneHTTPClient(cfg))
	g.directory = tenant.NewDirectory(cpClient, g.logger, cfg.ControlPlane.RefreshInterval)

	g.limiter = ratelimit.New(ratelimit.Config{
		Window:        cfg.RateLimit.Window,
		MaxRequests:   cfg.RateLimit.MaxRequests,
		SweepInterval: cfg.RateLimit.SweepInterval,
	}, g.logger)
	classifier := ratelimit.NewPathClassifier(cfg.RateLimit.Paths)

	g.extractor = server.NewSlugExtractor(g.directory, g.logger, server.SlugExtractorConfig{
		Enabled:       cfg.TenantSlug.Enabled,
		RequirePrefix: cfg.TenantSlug.RequirePrefix,
		PlatformPaths: cfg.TenantSlug.PlatformPaths,
	})

	fetcher := collections.NewClient(cfg.Upstream.BaseURL, includeHTTPClient(cfg))
	resolver := jsonapi.NewResolver(fetcher, g.logger, jsonapi.ResolverConfig{
		MaxConcurrent: cfg.Include.MaxConcurrent,
		CacheSize:     cfg.Include.CacheSize,
		CacheTTL:      cfg.Include.CacheTTL,
	})

	upstream, err := proxy.New(cfg.Upstream.BaseURL, g.logger)
	if err != nil {
		return fmt.Errorf("create upstream proxy: %w", err)
	}

	chain, err := pipeline.NewChain(
		pipeline.Stage{Name: "recover", Middleware: chimiddleware.Recoverer},
		pipeline.Stage{Name: "request-id", Middleware: server.RequestIDMiddleware},
		pipeline.Stage{Name: "logging", Middleware: server.LoggingMiddleware(g.logger)},
		pipeline.Stage{Name: "timeout", Middleware: server.TimeoutMiddleware(cfg.Server.RequestTimeout)},
		pipeline.Stage{Name: "rate-limit", Middleware: server.RateLimitMiddleware(g.limiter, classifier, g.logger)},
		pipeline.Stage{Name: "tenant-slug", Middleware: g.extractor.Middleware},
		pipeline.Stage{Name: "auth", Middleware: server.AuthMiddleware(g.verifier)},
		pipeline.Stage{Name: "canonicalize", Middleware: server.CanonicalizeMiddleware},
		pipeline.Stage{Name: "include", Middleware: server.IncludeMiddleware(resolver, g.logger)},
	)
	if err != nil {
		return fmt.Errorf("build pipeline: %w", err)
	}

	g.srv = server.New(cfg.Server.Port, g.logger, chain, upstream, g.directory)

	go g.directory.Run(g.ctx)
	go g.limiter.Run(g.ctx)
	if g.configPath != "" {
		go g.watchConfig()
	}

	go func() {
		if err := g.srv.Start(); err != nil {
			g.logger.Error("server failed", slog.String("error", err.Error()))
		}
	}()

	g.logger.Info("gateway started",
		slog.Int("port", cfg.Server.Port),
		slog.String("control_plane", cfg.ControlPlane.BaseURL),
		slog.String("upstream", cfg.Upstream.BaseURL))

	return nil
}

// Handler returns the assembled pipeline handler. Only valid after Start.
func (g *Gateway) Handler() http.Handler {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.srv == nil {
		return nil
	}
	return g.srv.Handler
}

// RefreshTenants requests an immediate tenant-directory refresh, e.g. after
// an upstream provisioning event.
func (g *Gateway) RefreshTenants() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.directory != nil {
		g.directory.Kick()
	}
}

// Shutdown stops the background loops and drains the HTTP server.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.logger.Info("shutting down gateway")

	if g.cancel != nil {
		g.cancel()
	}
	if g.srv != nil {
		if err := g.srv.Shutdown(ctx); err != nil {
			g.logger.Error("failed to shutdown server", slog.String("error", err.Error()))
			return err
		}
	}

	g.logger.Info("gateway shutdown complete")
	return nil
}

// watchConfig applies hot-reloadable settings when the config file changes.
func (g *Gateway) watchConfig() {
	onChange := func(cfg *config.Config) {
		g.logger.Info("config changed, applying reloadable settings")
		g.applyConfig(cfg)
	}

	if err := config.Watch(g.ctx, g.configPath, g.logger, onChange); err != nil {
		if err != context.Canceled {
			g.logger.Error("config watch failed", slog.String("error", err.Error()))
		}
	}
}

// applyConfig swaps the hot-reloadable settings: slug extraction flags and
// rate-limit window/max. Everything else requires a restart.
func (g *Gateway) applyConfig(cfg *config.Config) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.cfg = cfg
	if g.extractor != nil {
		g.extractor.UpdateConfig(server.SlugExtractorConfig{
			Enabled:       cfg.TenantSlug.Enabled,
			RequirePrefix: cfg.TenantSlug.RequirePrefix,
			PlatformPaths: cfg.TenantSlug.PlatformPaths,
		})
	}
	if g.limiter != nil {
		g.limiter.SetLimits(cfg.RateLimit.Window, cfg.RateLimit.MaxRequests)
	}
}
