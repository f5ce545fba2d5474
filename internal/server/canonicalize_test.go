package server

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestCanonicalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/product", "/api/collections/product"},
		{"/api/product/p1", "/api/collections/product/p1"},
		{"/api/collections/product", "/api/collections/product"},
		{"/api/collections", "/api/collections"},
		{"/api/collectionsfoo", "/api/collections/collectionsfoo"},
		{"/api/", "/api/collections/"},
		{"/api", "/api"},
		{"/actuator/health", "/actuator/health"},
		{"/", "/"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := CanonicalizePath(tt.path); got != tt.want {
			t.Errorf("CanonicalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestCanonicalizePath_Idempotent(t *testing.T) {
	paths := []string{"/api/product", "/api/collections/product", "/api/", "/other"}
	for _, p := range paths {
		once := CanonicalizePath(p)
		if twice := CanonicalizePath(once); twice != once {
			t.Errorf("CanonicalizePath not idempotent for %q: %q then %q", p, once, twice)
		}
	}
}

func TestCanonicalizeMiddleware_RewritesRequestPath(t *testing.T) {
	var gotPath string
	h := CanonicalizeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/product", nil))

	if gotPath != "/api/collections/product" {
		t.Errorf("downstream path = %q, want /api/collections/product", gotPath)
	}
}

func TestCanonicalizeMiddleware_LeavesCanonicalAlone(t *testing.T) {
	var gotReq *http.Request
	h := CanonicalizeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotReq = r
	}))

	req := httptest.NewRequest("GET", "/api/collections/product", nil)
	h.ServeHTTP(httptest.NewRecorder(), req)

	if gotReq != req {
		t.Error("request was cloned even though the path was already canonical")
	}
}

func TestCanonicalizeMiddleware_MirrorsRouteTarget(t *testing.T) {
	target := &RouteTarget{URL: &url.URL{Scheme: "http", Host: "collections.internal", Path: "/api/product"}}

	h := CanonicalizeMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/api/product", nil)
	req = req.WithContext(WithRouteTarget(req.Context(), target))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if target.URL.Path != "/api/collections/product" {
		t.Errorf("route target path = %q, want /api/collections/product", target.URL.Path)
	}
}
