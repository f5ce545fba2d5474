package server

import (
	"bytes"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/emf-platform/edge-gateway/internal/jsonapi"
)

// IncludeMiddleware decorates collection-API responses whose request carried
// a non-blank include parameter: it buffers the downstream response, resolves
// the requested relation paths, and merges the fetched resources into the
// document's included array. Resolution failures never fail the request; the
// original body is returned undecorated.
func IncludeMiddleware(resolver *jsonapi.Resolver, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.HasPrefix(r.URL.Path, apiPrefix) {
				next.ServeHTTP(w, r)
				return
			}
			paths := jsonapi.ParseInclude(r.URL.Query().Get("include"))
			if len(paths) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			rec := &bufferingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			body := rec.buf.Bytes()
			if rec.decorable() {
				if decorated, ok := resolveIncludes(r, resolver, logger, body, paths); ok {
					body = decorated
				}
			}

			w.Header().Del("Content-Length")
			w.Header().Set("Content-Length", strconv.Itoa(len(body)))
			w.WriteHeader(rec.statusCode)
			_, _ = w.Write(body)
		})
	}
}

// resolveIncludes parses the primary document, resolves the relation paths,
// and re-encodes with the merged included array. ok is false when the body
// should be passed through untouched.
func resolveIncludes(r *http.Request, resolver *jsonapi.Resolver, logger *slog.Logger, body []byte, paths []jsonapi.Path) ([]byte, bool) {
	doc, err := jsonapi.ParseDocument(body)
	if err != nil {
		logger.Debug("response is not a JSON:API document, skipping include resolution",
			slog.String("error", err.Error()))
		return nil, false
	}
	if !doc.HasData() {
		return nil, false
	}

	resolved := resolver.Resolve(r.Context(), doc.Data, paths)
	if len(resolved) == 0 {
		return nil, false
	}

	doc.MergeIncluded(resolved)
	encoded, err := doc.Encode()
	if err != nil {
		logger.Warn("failed to serialize decorated document, returning original response",
			slog.String("error", err.Error()))
		return nil, false
	}

	AddLogField(r.Context(), "included", strconv.Itoa(len(resolved)))
	return encoded, true
}

// bufferingResponseWriter holds back the response so the include stage can
// rewrite the body and Content-Length before anything reaches the wire.
type bufferingResponseWriter struct {
	http.ResponseWriter
	statusCode int
	buf        bytes.Buffer
}

func (rw *bufferingResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
}

func (rw *bufferingResponseWriter) Write(b []byte) (int, error) {
	return rw.buf.Write(b)
}

// decorable reports whether the buffered response is a successful JSON
// response worth decorating.
func (rw *bufferingResponseWriter) decorable() bool {
	if rw.statusCode < 200 || rw.statusCode >= 300 {
		return false
	}
	contentType := rw.Header().Get("Content-Type")
	return strings.Contains(contentType, "json")
}
