// Package collections is the HTTP client for the downstream collection-data
// service, used by include resolution to fetch related resources by id.
package collections

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/emf-platform/edge-gateway/internal/jsonapi"
)

// DefaultTimeout bounds one resource fetch. A slow fetch degrades only its
// include branch, so this stays deliberately short.
const DefaultTimeout = 5 * time.Second

// Client fetches JSON:API resources from the collection-data service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a collections client. When httpClient is nil a default
// client with an OpenTelemetry-instrumented transport and DefaultTimeout is
// used.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{
			Timeout:   DefaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// FetchResource retrieves a single resource by type and id. A response whose
// document has no primary data yields (nil, nil): the resource does not
// exist, which is not an error for include resolution.
func (c *Client) FetchResource(ctx context.Context, resourceType, id string) (*jsonapi.Resource, error) {
	fetchURL := fmt.Sprintf("%s/api/collections/%s/%s",
		c.baseURL, url.PathEscape(resourceType), url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fetchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build resource request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%s: %w", resourceType, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s/%s: unexpected status %d", resourceType, id, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", resourceType, id, err)
	}

	doc, err := jsonapi.ParseDocument(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s/%s: %w", resourceType, id, err)
	}
	if !doc.HasData() {
		return nil, nil
	}
	return doc.Data[0], nil
}
