// Package bedrock is a thin HTTP client for the Bedrock runtime API. It only
// moves JSON bytes; each invoker owns its model-specific request and response
// shapes.
package bedrock

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"bedrockbot/internal/httpx"
	"bedrockbot/internal/metrics"
)

const (
	// Model generation can take well over a minute for long outputs.
	defaultHTTPTimeout = 120 * time.Second
)

// Client calls the Bedrock runtime with a long-term API key.
type Client struct {
	apiBase string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// Config configures the Bedrock runtime client. APIBase overrides the
// regional endpoint, mainly for tests.
type Config struct {
	Region  string
	APIBase string
	APIKey  string
	Logger  *slog.Logger
}

// New creates a Bedrock runtime client for the given region.
func New(cfg Config) *Client {
	base := cfg.APIBase
	if base == "" {
		base = fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", cfg.Region)
	}
	return &Client{
		apiBase: base,
		apiKey:  cfg.APIKey,
		client:  httpx.SharedClient(defaultHTTPTimeout),
		logger:  cfg.Logger,
	}
}

// InvokeModel calls POST /model/{modelId}/invoke with the given JSON body and
// returns the raw response body.
func (c *Client) InvokeModel(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	return c.post(ctx, modelID, "invoke", body)
}

// Converse calls POST /model/{modelId}/converse. The model ID may be an
// inference-profile identifier.
func (c *Client) Converse(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	return c.post(ctx, modelID, "converse", body)
}

func (c *Client) post(ctx context.Context, modelID, action string, body []byte) ([]byte, error) {
	if modelID == "" {
		return nil, fmt.Errorf("bedrock: model ID is empty")
	}

	// Inference-profile ARNs contain slashes and colons.
	endpoint := fmt.Sprintf("%s/model/%s/%s", c.apiBase, url.PathEscape(modelID), action)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bedrock: new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.BackendLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, fmt.Errorf("bedrock: %s %s: %w", action, modelID, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bedrock: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("bedrock: %s %s: status %d: %s", action, modelID, resp.StatusCode, string(respBody))
	}

	c.logger.Debug("bedrock call finished",
		"action", action,
		"model", modelID,
		"latency_ms", time.Since(start).Milliseconds(),
		"response_len", len(respBody),
	)
	return respBody, nil
}
