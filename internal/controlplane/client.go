// Package controlplane is the HTTP client for the control-plane service,
// which owns tenant provisioning and serves the slug->tenant-ID map.
package controlplane

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds one slug-map fetch. Refreshes are retried on the
// next interval, so there is no in-call retry.
const DefaultTimeout = 10 * time.Second

// Client fetches tenant metadata from the control plane.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a control-plane client. When httpClient is nil a default
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

// FetchSlugMap retrieves the full slug->tenant-ID mapping in one call.
func (c *Client) FetchSlugMap(ctx context.Context) (map[string]string, error) {
	url := c.baseURL + "/tenants/slug-map"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build slug-map request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch slug map: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch slug map: unexpected status %d", resp.StatusCode)
	}

	var slugMap map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&slugMap); err != nil {
		return nil, fmt.Errorf("decode slug map: %w", err)
	}
	return slugMap, nil
}
