// Package ingress receives platform events and starts asynchronous
// processing. The router classifies an event by the endpoint that received
// it, normalizes the user text, and hands the payload to the dispatcher; it
// never observes the business result, only whether the dispatch was accepted.
package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"bedrockbot/internal/domain"
	"bedrockbot/internal/metrics"
)

// EventsPathPrefix is the base path for per-model event endpoints: each model
// has its own Slack app and receives events on its own endpoint.
const EventsPathPrefix = "/slack/events/"

const workerFailureMessage = "Failed to invoke worker function!"

// mentionPattern matches the platform mention token embedded in event text.
var mentionPattern = regexp.MustCompile(`<@[^>]*>`)

// Router turns inbound events into dispatched payloads.
type Router struct {
	target     string // worker dispatch target; empty means misconfigured
	dispatcher domain.Dispatcher
	logger     *slog.Logger
	endpoints  map[string]domain.ModelID
}

// NewRouter creates a router dispatching to the given worker target. The
// endpoint mapping is fixed: one path per known model.
func NewRouter(target string, dispatcher domain.Dispatcher, logger *slog.Logger) *Router {
	endpoints := make(map[string]domain.ModelID, len(domain.KnownModels()))
	for _, m := range domain.KnownModels() {
		endpoints[EventsPathPrefix+string(m)] = m
	}
	return &Router{
		target:     target,
		dispatcher: dispatcher,
		logger:     logger,
		endpoints:  endpoints,
	}
}

// ModelForEndpoint resolves the model implied by the receiving endpoint.
func (r *Router) ModelForEndpoint(path string) (domain.ModelID, error) {
	model, ok := r.endpoints[path]
	if !ok {
		return "", fmt.Errorf("%w: %s", domain.ErrUnknownEndpoint, path)
	}
	return model, nil
}

// StripMention removes platform mention tokens from the event text and trims
// surrounding whitespace.
func StripMention(text string) string {
	return strings.TrimSpace(mentionPattern.ReplaceAllString(text, ""))
}

// Route classifies the event, builds the payload, and dispatches it
// fire-and-forget. A dispatch failure is reported to the originating channel
// through sink (best-effort, sink may be nil) and returned to the caller,
// which must still acknowledge the transport promptly: the failure is
// non-fatal to the ingress response.
func (r *Router) Route(ctx context.Context, ev domain.InboundEvent, sink domain.Notifier) error {
	model, err := r.ModelForEndpoint(ev.Endpoint)
	if err != nil {
		r.logger.Error("no model mapped for endpoint", "endpoint", ev.Endpoint)
		return err
	}

	payload := domain.DispatchPayload{
		Model:     model,
		ChannelID: ev.ChannelID,
		InputText: StripMention(ev.Text),
	}

	if err := r.dispatcher.Dispatch(ctx, r.target, payload); err != nil {
		metrics.DispatchesRejected.Inc()
		r.logger.Error("failed to invoke worker", "model", model, "channel", ev.ChannelID, "err", err)
		if sink != nil && ev.ChannelID != "" {
			if postErr := sink.PostText(ctx, ev.ChannelID, workerFailureMessage); postErr != nil {
				r.logger.Error("failed to post dispatch failure", "channel", ev.ChannelID, "err", postErr)
			}
		}
		return err
	}

	metrics.DispatchesAccepted.Inc()
	r.logger.Info("dispatched to worker", "model", model, "channel", ev.ChannelID)
	return nil
}
