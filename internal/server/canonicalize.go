package server

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

const (
	apiPrefix            = "/api/"
	collectionsSegment   = "collections"
	canonicalPathPrefix  = "/api/collections/"
)

// RouteTarget holds the routing-target URL computed by an upstream router
// before canonicalization runs. The canonicalizer mirrors its path rewrite
// onto this URL so the two stay consistent.
type RouteTarget struct {
	URL *url.URL
}

type routeTargetKey struct{}

// WithRouteTarget attaches a routing-target holder to the context.
func WithRouteTarget(ctx context.Context, target *RouteTarget) context.Context {
	return context.WithValue(ctx, routeTargetKey{}, target)
}

// RouteTargetFromContext returns the routing-target holder, if present.
func RouteTargetFromContext(ctx context.Context) *RouteTarget {
	target, _ := ctx.Value(routeTargetKey{}).(*RouteTarget)
	return target
}

// CanonicalizePath rewrites externally visible collection paths to the
// internally routable form: /api/{rest} becomes /api/collections/{rest}. The
// rewrite is idempotent: a path already under /api/collections/ is returned
// unchanged, as is any non-/api/ path. "/api/" with no further segment
// yields "/api/collections/"; downstream owns collection-not-found
// semantics.
func CanonicalizePath(path string) string {
	if !strings.HasPrefix(path, apiPrefix) {
		return path
	}
	rest := path[len(apiPrefix):]
	if rest == collectionsSegment || strings.HasPrefix(rest, collectionsSegment+"/") {
		return path
	}
	return canonicalPathPrefix + rest
}

// CanonicalizeMiddleware applies CanonicalizePath to the request path and,
// when a routing target was computed upstream, to the target's path as well.
func CanonicalizeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		canonical := CanonicalizePath(r.URL.Path)
		if canonical == r.URL.Path {
			next.ServeHTTP(w, r)
			return
		}

		if target := RouteTargetFromContext(r.Context()); target != nil && target.URL != nil {
			target.URL.Path = CanonicalizePath(target.URL.Path)
			target.URL.RawPath = ""
		}

		req := r.Clone(r.Context())
		req.URL.Path = canonical
		req.URL.RawPath = ""
		next.ServeHTTP(w, req)
	})
}
