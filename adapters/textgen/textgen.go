// Package textgen provides an HTTP client for the upstream text-generation
// service. Transport only: the stream comes back raw for the caller to tee.
package textgen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/meterly/subgate/ports"
)

// Config holds generator client configuration.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration // covers the whole stream; defaults to 2m
}

// Client streams generated content from the upstream service.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient creates a new generator client.
func NewClient(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    strings.TrimSuffix(cfg.URL, "/"),
		apiKey:     cfg.APIKey,
	}
}

type generateRequest struct {
	Topic string `json:"topic"`
}

// Generate starts a streamed generation for the topic. The caller owns the
// returned body and must close it.
func (c *Client) Generate(ctx context.Context, topic string) (io.ReadCloser, error) {
	payload, err := json.Marshal(generateRequest{Topic: topic})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("generator request: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("generator returned status %d", resp.StatusCode)
	}

	return resp.Body, nil
}

// Ensure interface compliance.
var _ ports.TextGenerator = (*Client)(nil)
