package proxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emf-platform/edge-gateway/internal/tenant"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestUpstream_ForwardsWithTenantHeaders(t *testing.T) {
	var gotPath, gotID, gotSlug, gotOriginal string
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotID = r.Header.Get("X-Tenant-Id")
		gotSlug = r.Header.Get("X-Tenant-Slug")
		gotOriginal = r.Header.Get("X-Original-Path")
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	u, err := New(backend.URL, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/collections/product", nil)
	ctx := tenant.WithID(req.Context(), "tenant-uuid-1")
	ctx = tenant.WithSlug(ctx, "acme")
	ctx = tenant.WithOriginalPath(ctx, "/acme/api/product")

	rec := httptest.NewRecorder()
	u.ServeHTTP(rec, req.WithContext(ctx))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotPath != "/api/collections/product" {
		t.Errorf("backend path = %q", gotPath)
	}
	if gotID != "tenant-uuid-1" || gotSlug != "acme" || gotOriginal != "/acme/api/product" {
		t.Errorf("tenant headers = %q/%q/%q", gotID, gotSlug, gotOriginal)
	}
}

func TestUpstream_NoTenantContextNoHeaders(t *testing.T) {
	var hasID bool
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasID = r.Header["X-Tenant-Id"]
		w.WriteHeader(http.StatusOK)
	}))
	defer backend.Close()

	u, err := New(backend.URL, discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	u.ServeHTTP(rec, httptest.NewRequest("GET", "/api/collections/product", nil))

	if hasID {
		t.Error("X-Tenant-Id sent without tenant context")
	}
}

func TestUpstream_UnavailableBackend(t *testing.T) {
	// Port 1 on localhost refuses connections.
	u, err := New("http://127.0.0.1:1", discardLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec := httptest.NewRecorder()
	u.ServeHTTP(rec, httptest.NewRequest("GET", "/api/collections/product", nil))

	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", rec.Code)
	}

	var body struct {
		Error struct {
			Status int    `json:"status"`
			Code   string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("unmarshal 502 body: %v", err)
	}
	if body.Error.Code != "UPSTREAM_UNAVAILABLE" || body.Error.Status != 502 {
		t.Errorf("error body = %+v", body.Error)
	}
}

func TestNew_InvalidURL(t *testing.T) {
	if _, err := New("http://bad url with spaces", discardLogger()); err == nil {
		t.Error("expected error for invalid upstream URL")
	}
}
