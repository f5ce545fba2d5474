package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/emf-platform/edge-gateway/internal/jsonapi"
)

// mapFetcher serves resources from a map; unknown identifiers yield an error.
type mapFetcher map[jsonapi.Identifier]string

func (m mapFetcher) FetchResource(ctx context.Context, resourceType, id string) (*jsonapi.Resource, error) {
	raw, ok := m[jsonapi.Identifier{Type: resourceType, ID: id}]
	if !ok {
		return nil, errors.New("not found")
	}
	doc, err := jsonapi.ParseDocument([]byte(`{"data":` + raw + `}`))
	if err != nil {
		return nil, err
	}
	return doc.Data[0], nil
}

func includeHandler(fetcher jsonapi.Fetcher, status int, contentType, body string) http.Handler {
	resolver := jsonapi.NewResolver(fetcher, discardLogger(), jsonapi.ResolverConfig{})
	mw := IncludeMiddleware(resolver, discardLogger())
	return mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
}

func TestIncludeMiddleware_DecoratesResponse(t *testing.T) {
	fetcher := mapFetcher{
		{Type: "users", ID: "u1"}: `{"type":"users","id":"u1","attributes":{"name":"Ada"}}`,
	}
	body := `{"data":{"type":"product","id":"p1","relationships":{"author":{"data":{"type":"users","id":"u1"}}}}}`
	h := includeHandler(fetcher, http.StatusOK, "application/vnd.api+json", body)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/collections/product/p1?include=author", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var doc struct {
		Data     json.RawMessage      `json:"data"`
		Included []jsonapi.Identifier `json:"included"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("unmarshal decorated body: %v", err)
	}
	if len(doc.Included) != 1 || doc.Included[0] != (jsonapi.Identifier{Type: "users", ID: "u1"}) {
		t.Errorf("included = %v, want [users:u1]", doc.Included)
	}

	if got := rec.Header().Get("Content-Length"); got != strconv.Itoa(rec.Body.Len()) {
		t.Errorf("Content-Length = %q, body is %d bytes", got, rec.Body.Len())
	}
}

func TestIncludeMiddleware_NoIncludeParamPassesThrough(t *testing.T) {
	body := `{"data":{"type":"product","id":"p1"}}`
	h := includeHandler(mapFetcher{}, http.StatusOK, "application/json", body)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/collections/product/p1", nil))

	if rec.Body.String() != body {
		t.Errorf("body altered without include parameter:\n%s", rec.Body.String())
	}
}

func TestIncludeMiddleware_NonAPIPathPassesThrough(t *testing.T) {
	h := includeHandler(mapFetcher{}, http.StatusOK, "application/json", `{"status":"UP"}`)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/actuator/health?include=author", nil))

	if rec.Body.String() != `{"status":"UP"}` {
		t.Errorf("non-API body altered: %s", rec.Body.String())
	}
}

func TestIncludeMiddleware_ErrorStatusUntouched(t *testing.T) {
	body := `{"errors":[{"status":"404"}]}`
	h := includeHandler(mapFetcher{}, http.StatusNotFound, "application/json", body)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/collections/product/ghost?include=author", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec.Body.String() != body {
		t.Errorf("error body altered: %s", rec.Body.String())
	}
}

func TestIncludeMiddleware_NonJSONUntouched(t *testing.T) {
	h := includeHandler(mapFetcher{}, http.StatusOK, "text/html", "<html></html>")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/collections/export?include=author", nil))

	if rec.Body.String() != "<html></html>" {
		t.Errorf("non-JSON body altered: %s", rec.Body.String())
	}
}

func TestIncludeMiddleware_ResolutionFailureReturnsOriginal(t *testing.T) {
	// Empty fetcher: every fetch fails, so decoration yields nothing.
	body := `{"data":{"type":"product","id":"p1","relationships":{"author":{"data":{"type":"users","id":"u1"}}}}}`
	h := includeHandler(mapFetcher{}, http.StatusOK, "application/json", body)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/collections/product/p1?include=author", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if rec.Body.String() != body {
		t.Errorf("body altered despite failed resolution:\n%s", rec.Body.String())
	}
}

func TestIncludeMiddleware_UnknownRelationLeavesBodyAlone(t *testing.T) {
	body := `{"data":{"type":"product","id":"p1"}}`
	h := includeHandler(mapFetcher{}, http.StatusOK, "application/json", body)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/collections/product/p1?include=nonexistent", nil))

	if rec.Body.String() != body {
		t.Errorf("body altered for unknown relation:\n%s", rec.Body.String())
	}
}
