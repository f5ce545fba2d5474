package server

import (
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/emf-platform/edge-gateway/internal/tenant"
)

// SlugExtractorConfig is the hot-reloadable configuration of the slug
// extraction stage.
type SlugExtractorConfig struct {
	// Enabled turns the stage off entirely when false.
	Enabled bool
	// RequirePrefix selects strict mode: missing, invalid, and unresolved
	// slugs are rejected with 404. When false (migration mode) such requests
	// pass through, except that a syntactically valid but unknown slug is
	// still stripped so downstream route matching sees bare paths.
	RequirePrefix bool
	// PlatformPaths are prefixes that bypass slug extraction.
	PlatformPaths []string
}

// SlugExtractor strips a leading tenant-slug segment from the request path,
// resolves it against the tenant directory, and attaches the tenant exchange
// attributes. It must run before credential verification (the resolved
// tenant is input to authentication) and before path canonicalization.
type SlugExtractor struct {
	directory *tenant.Directory
	logger    *slog.Logger
	cfg       atomic.Pointer[SlugExtractorConfig]
}

// NewSlugExtractor creates the slug extraction stage.
func NewSlugExtractor(directory *tenant.Directory, logger *slog.Logger, cfg SlugExtractorConfig) *SlugExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	e := &SlugExtractor{directory: directory, logger: logger}
	e.cfg.Store(&cfg)
	return e
}

// UpdateConfig atomically replaces the stage configuration. In-flight
// requests keep the configuration they started with.
func (e *SlugExtractor) UpdateConfig(cfg SlugExtractorConfig) {
	e.cfg.Store(&cfg)
}

// Middleware is the pipeline stage.
func (e *SlugExtractor) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cfg := e.cfg.Load()

		if !cfg.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		path := r.URL.Path

		// Platform endpoints bypass the slug requirement.
		for _, prefix := range cfg.PlatformPaths {
			if strings.HasPrefix(path, prefix) {
				next.ServeHTTP(w, r)
				return
			}
		}

		slug := firstSegment(path)
		if slug == "" {
			// Root "/" or empty path: no candidate slug.
			if cfg.RequirePrefix {
				writeTenantNotFound(w, "A tenant identifier is required in the URL path.")
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		if !tenant.ValidSlug(slug) {
			if cfg.RequirePrefix {
				writeTenantNotFound(w, "Invalid tenant identifier: "+slug)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		tenantID, resolved := e.directory.Lookup(slug)
		if !resolved && cfg.RequirePrefix {
			writeTenantNotFound(w, "Tenant not found: "+slug)
			return
		}

		// Strip the slug segment regardless of resolution so downstream
		// route matching sees bare paths like /api/**.
		stripped := stripFirstSegment(path, slug)

		ctx := tenant.WithSlug(r.Context(), slug)
		ctx = tenant.WithOriginalPath(ctx, path)
		if resolved {
			ctx = tenant.WithID(ctx, tenantID)
		} else {
			e.logger.Warn("slug matches pattern but is not in directory; stripping path without tenant context",
				slog.String("tenant_slug", slug))
		}
		AddTenantLogFields(ctx)

		req := r.Clone(ctx)
		req.URL.Path = stripped
		req.URL.RawPath = ""
		next.ServeHTTP(w, req)
	})
}

// firstSegment extracts the first non-empty path segment: "/acme/api/users"
// yields "acme", "/" yields "".
func firstSegment(path string) string {
	if len(path) <= 1 {
		return ""
	}
	rest := strings.TrimPrefix(path, "/")
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[:idx]
	}
	return rest
}

// stripFirstSegment removes the leading "/{segment}" from the path:
// "/acme/api/users" -> "/api/users", "/acme" -> "/".
func stripFirstSegment(path, segment string) string {
	stripped := strings.TrimPrefix(path, "/"+segment)
	if stripped == "" {
		return "/"
	}
	return stripped
}
