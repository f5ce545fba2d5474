// Package proxy forwards canonicalized requests to the downstream
// collection-data service, propagating the tenant exchange attributes as
// headers for the downstream collaborators that consume them.
package proxy

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/emf-platform/edge-gateway/internal/tenant"
)

// Upstream is the terminal pipeline handler: a reverse proxy to the
// collection-data service.
type Upstream struct {
	target *url.URL
	proxy  *httputil.ReverseProxy
}

// New creates an upstream proxy to baseURL.
func New(baseURL string, logger *slog.Logger) (*Upstream, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse upstream url %q: %w", baseURL, err)
	}

	u := &Upstream{target: target}
	u.proxy = &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()

			ctx := pr.In.Context()
			if id, ok := tenant.ID(ctx); ok {
				pr.Out.Header.Set("X-Tenant-Id", id)
			}
			if slug, ok := tenant.Slug(ctx); ok {
				pr.Out.Header.Set("X-Tenant-Slug", slug)
			}
			if original, ok := tenant.OriginalPath(ctx); ok {
				pr.Out.Header.Set("X-Original-Path", original)
			}
		},
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Error("upstream request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte(`{"error":{"status":502,"code":"UPSTREAM_UNAVAILABLE","message":"The data service is unavailable."}}`))
		},
	}
	return u, nil
}

func (u *Upstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	u.proxy.ServeHTTP(w, r)
}
