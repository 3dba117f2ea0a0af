// Package worker is the receiving end of the fire-and-forget dispatch: it
// validates the payload, resolves credentials for the named model, binds a
// fresh chat client to them, and routes to exactly one model invoker. Nothing
// it does is observable by the dispatching side.
package worker

import (
	"context"
	"fmt"
	"log/slog"

	"bedrockbot/internal/audit"
	"bedrockbot/internal/domain"
	"bedrockbot/internal/invoker"
	"bedrockbot/internal/metrics"
)

// Handler processes one dispatch payload per call. It holds no per-request
// state; everything request-scoped (credentials, chat client) is resolved
// fresh inside Handle.
type Handler struct {
	stage     string
	resolver  domain.CredentialResolver
	notifiers domain.NotifierFactory
	registry  *invoker.Registry
	audit     *audit.Store // nil disables the audit trail
	logger    *slog.Logger
}

// HandlerConfig wires the handler's collaborators.
type HandlerConfig struct {
	Stage     string
	Resolver  domain.CredentialResolver
	Notifiers domain.NotifierFactory
	Registry  *invoker.Registry
	Audit     *audit.Store
	Logger    *slog.Logger
}

// NewHandler creates a worker handler.
func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		stage:     cfg.Stage,
		resolver:  cfg.Resolver,
		notifiers: cfg.Notifiers,
		registry:  cfg.Registry,
		audit:     cfg.Audit,
		logger:    cfg.Logger,
	}
}

// Handle routes one payload to its model invoker. It returns nothing to the
// transport beyond acceptance; every failure below is either converted to a
// chat message by the invoker or degrades to log-only when it happens before
// a chat client exists.
func (h *Handler) Handle(ctx context.Context, payload domain.DispatchPayload) {
	h.logger.Debug("payload received", "model", payload.Model, "channel", payload.ChannelID)

	// An unknown model has no credentials and no invoker: the request is
	// dropped with only a log trace.
	if !payload.Model.Known() {
		h.logger.Error("unknown model in payload", "model", string(payload.Model))
		metrics.PayloadsInvalid.Inc()
		h.record(ctx, payload, audit.OutcomeDropped, "unknown model")
		return
	}

	creds, err := h.resolver.Resolve(ctx, h.stage, payload.Model)
	if err != nil {
		// Pre-client failure: no token means no way to notify the user.
		h.logger.Error("credential resolution failed", "model", payload.Model, "err", err)
		h.record(ctx, payload, audit.OutcomeDropped, err.Error())
		return
	}

	sink := h.notifiers(creds.BotToken)

	if payload.ChannelID == "" || payload.InputText == "" {
		err := fmt.Errorf("%w: %+v", domain.ErrInvalidRequest, payload)
		h.logger.Error("invalid payload", "model", payload.Model, "err", err)
		metrics.PayloadsInvalid.Inc()
		// The invoker performs the same check and owns the user notification;
		// fall through so the error message reaches the channel when one is known.
	}

	inv, ok := h.registry.Lookup(payload.Model)
	if !ok {
		// Known model with no registered invoker is a wiring bug, not user error.
		h.logger.Error("no invoker registered for model", "model", payload.Model)
		h.record(ctx, payload, audit.OutcomeDropped, "no invoker registered")
		return
	}

	if err := inv.Invoke(ctx, payload.ChannelID, payload.InputText, sink); err != nil {
		// Already logged and notified by the invoker; account for it only.
		metrics.InvocationsFor(string(payload.Model), "error").Inc()
		h.record(ctx, payload, audit.OutcomeError, err.Error())
		return
	}

	metrics.InvocationsFor(string(payload.Model), "ok").Inc()
	h.record(ctx, payload, audit.OutcomeOK, "")
	h.logger.Info("invocation completed", "model", payload.Model, "channel", payload.ChannelID)
}

func (h *Handler) record(ctx context.Context, payload domain.DispatchPayload, outcome, detail string) {
	if h.audit == nil {
		return
	}
	h.audit.RecordInvocation(ctx, audit.Record{
		Model:     payload.Model,
		ChannelID: payload.ChannelID,
		Outcome:   outcome,
		Detail:    detail,
	})
}
