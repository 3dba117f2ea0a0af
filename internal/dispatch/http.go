// Package dispatch implements the one-way invocation channel between the
// ingress router and the worker: serialize the payload, POST it, observe only
// the acceptance status. The eventual business outcome is never visible here,
// and a rejected dispatch is reported upward exactly once with no retry.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"bedrockbot/internal/domain"
	"bedrockbot/internal/httpx"
)

const dispatchTimeout = 10 * time.Second

// HTTPDispatcher implements domain.Dispatcher by POSTing the payload to the
// worker's invoke endpoint. Acceptance is a 202 response, nothing else.
type HTTPDispatcher struct {
	client *http.Client
	logger *slog.Logger
}

// NewHTTP creates a dispatcher using the shared pooled HTTP client.
func NewHTTP(logger *slog.Logger) *HTTPDispatcher {
	return &HTTPDispatcher{
		client: httpx.SharedClient(dispatchTimeout),
		logger: logger,
	}
}

// Dispatch hands the payload to the worker at target. An empty target fails
// fast with ErrMisconfiguredTarget before any network interaction.
func (d *HTTPDispatcher) Dispatch(ctx context.Context, target string, payload domain.DispatchPayload) error {
	if target == "" {
		return domain.ErrMisconfiguredTarget
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new dispatch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("dispatch to %s: %w", target, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("dispatch rejected: status %d", resp.StatusCode)
	}

	d.logger.Debug("dispatch accepted", "target", target, "model", payload.Model, "channel", payload.ChannelID)
	return nil
}
