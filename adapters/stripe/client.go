// Package stripe provides the billing provider adapters: a low-level
// authenticated HTTP client plus the resolvers and reporters built on it.
package stripe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meterly/subgate/adapters/metrics"
)

const defaultBaseURL = "https://api.stripe.com"

// Config holds provider client configuration.
type Config struct {
	SecretKey string
	BaseURL   string        // defaults to the provider's public endpoint
	Timeout   time.Duration // defaults to 30s
}

// Client is the low-level accessor to the provider's REST API.
// Pure transport: it attaches the bearer credential to every call and
// performs no retries and no response-shape validation. Callers validate.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
	metrics    *metrics.Collector // optional
}

// NewClient creates a new provider client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		secretKey:  cfg.SecretKey,
	}
}

// SetMetrics attaches a metrics collector. Safe to leave unset.
func (c *Client) SetMetrics(m *metrics.Collector) {
	c.metrics = m
}

// Do issues a single request against the provider. For POST the form is
// sent x-www-form-urlencoded, matching the provider's API conventions.
// Any network error or non-JSON body is returned raw, not yet classified.
func (c *Client) Do(ctx context.Context, method, path string, form url.Values) (json.RawMessage, error) {
	var body io.Reader
	if method == http.MethodPost && form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.count(path, "transport_error")
		return nil, fmt.Errorf("provider request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		c.count(path, "read_error")
		return nil, fmt.Errorf("read response: %w", err)
	}

	if !json.Valid(respBody) {
		c.count(path, "bad_body")
		return nil, fmt.Errorf("non-JSON response from provider (%d bytes)", len(respBody))
	}

	c.count(path, fmt.Sprintf("%d", resp.StatusCode))
	return json.RawMessage(respBody), nil
}

func (c *Client) count(path, status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.ProviderRequests.WithLabelValues(endpointLabel(path), status).Inc()
}

// endpointLabel collapses a request path to a low-cardinality metric label.
func endpointLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/customers"):
		return "customers"
	case strings.HasPrefix(path, "/v1/subscriptions"):
		return "subscriptions"
	case strings.HasPrefix(path, "/v1/subscription_items"):
		return "subscription_items"
	case strings.HasPrefix(path, "/v1/products"):
		return "products"
	default:
		return "other"
	}
}
