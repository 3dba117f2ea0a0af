// Package invoker holds one implementation of domain.Invoker per model
// backend. Invokers are the principal failure-recovery point of the pipeline:
// the triggering call was fire-and-forget, so any error in request building,
// the backend call, or response parsing is logged and converted into a
// user-visible chat message instead of being returned.
package invoker

import (
	"context"
	"fmt"
	"log/slog"

	"bedrockbot/internal/domain"
)

// Registry maps each known model to its invoker.
type Registry struct {
	invokers map[domain.ModelID]domain.Invoker
}

// NewRegistry builds the registry with all built-in invokers. opusProfile is
// the inference-profile identifier for the opus backend; it may be empty, in
// which case opus invocations fail with a user-visible error.
func NewRegistry(backend domain.ModelBackend, opusProfile string, logger *slog.Logger) *Registry {
	invokers := []domain.Invoker{
		NewClaudeSonnet(backend, logger),
		NewClaudeOpus(backend, opusProfile, logger),
		NewStableImageUltra(backend, logger),
	}
	r := &Registry{invokers: make(map[domain.ModelID]domain.Invoker, len(invokers))}
	for _, inv := range invokers {
		r.invokers[inv.Model()] = inv
	}
	return r
}

// Lookup returns the invoker for the given model, if one is registered.
func (r *Registry) Lookup(model domain.ModelID) (domain.Invoker, bool) {
	inv, ok := r.invokers[model]
	return inv, ok
}

// Register replaces an invoker. Used by tests to substitute fakes.
func (r *Registry) Register(inv domain.Invoker) {
	r.invokers[inv.Model()] = inv
}

// validateArgs mirrors the per-invoker argument check: both the channel and
// the text must be present before anything else happens.
func validateArgs(channelID, inputText string) error {
	if channelID == "" || inputText == "" {
		return fmt.Errorf("%w: channel ID=%q, input text=%q", domain.ErrInvalidRequest, channelID, inputText)
	}
	return nil
}

// reportFailure logs the error and, when a channel is known, posts it to the
// user. The notification itself is best-effort: a failed post is only logged.
func reportFailure(ctx context.Context, sink domain.Notifier, logger *slog.Logger, model domain.ModelID, channelID string, err error) {
	logger.Error("error invoking model", "model", model, "channel", channelID, "err", err)
	if channelID == "" {
		return
	}
	if postErr := sink.PostText(ctx, channelID, fmt.Sprintf("Error occurred: %v", err)); postErr != nil {
		logger.Error("failed to post error notification", "model", model, "channel", channelID, "err", postErr)
	}
}
