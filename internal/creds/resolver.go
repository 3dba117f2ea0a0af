// Package creds resolves per-model, per-stage Slack credentials from a
// hierarchical parameter store. Parameter names are matched by suffix under
// {basePath}/{stage}/: {MODEL}/SLACK_BOT_TOKEN and
// {MODEL}/SLACK_BOT_SIGNING_SECRET.
//
// Nothing here caches: every Resolve is a fresh store lookup, so tokens
// rotated in the store take effect on the next invocation.
package creds

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bedrockbot/internal/domain"
)

const (
	// DefaultBasePath is the parameter namespace all credentials live under.
	DefaultBasePath = "/bedrock-slackbot"

	tokenSuffix         = "SLACK_BOT_TOKEN"
	signingSecretSuffix = "SLACK_BOT_SIGNING_SECRET"
)

// Resolver implements domain.CredentialResolver against a ParameterSource.
type Resolver struct {
	store    domain.ParameterSource
	basePath string
	logger   *slog.Logger
}

// NewResolver creates a resolver over the given store. An empty basePath
// falls back to DefaultBasePath.
func NewResolver(store domain.ParameterSource, basePath string, logger *slog.Logger) *Resolver {
	if basePath == "" {
		basePath = DefaultBasePath
	}
	return &Resolver{store: store, basePath: strings.TrimSuffix(basePath, "/"), logger: logger}
}

func (r *Resolver) stagePath(stage string) string {
	return r.basePath + "/" + stage + "/"
}

// Resolve returns the bot token and signing secret for one model. It fails
// with ErrMissingCredentials when the token is absent; callers must abort the
// invocation rather than proceed with a partial credential set. A missing
// signing secret alone is tolerated: only the ingress app verifies signatures,
// and it checks the field itself.
func (r *Resolver) Resolve(ctx context.Context, stage string, model domain.ModelID) (domain.Credentials, error) {
	params, err := r.store.GetByPath(ctx, r.stagePath(stage))
	if err != nil {
		return domain.Credentials{}, fmt.Errorf("credential lookup for %s: %w", model, err)
	}

	var out domain.Credentials
	suffix := model.CredentialSuffix()
	for name, value := range params {
		switch {
		case strings.HasSuffix(name, suffix+"/"+tokenSuffix):
			out.BotToken = value
		case strings.HasSuffix(name, suffix+"/"+signingSecretSuffix):
			out.SigningSecret = value
		}
	}

	if out.BotToken == "" {
		return domain.Credentials{}, fmt.Errorf("%w: model %s, stage %s", domain.ErrMissingCredentials, model, stage)
	}
	return out, nil
}

// ResolveAll returns the credentials found for every known model in one
// lookup. Models with no stored token are omitted rather than failing the
// whole call; it feeds diagnostics, not the invocation path.
func (r *Resolver) ResolveAll(ctx context.Context, stage string) (map[domain.ModelID]domain.Credentials, error) {
	params, err := r.store.GetByPath(ctx, r.stagePath(stage))
	if err != nil {
		return nil, fmt.Errorf("credential lookup for stage %s: %w", stage, err)
	}

	out := make(map[domain.ModelID]domain.Credentials)
	for _, model := range domain.KnownModels() {
		var c domain.Credentials
		suffix := model.CredentialSuffix()
		for name, value := range params {
			switch {
			case strings.HasSuffix(name, suffix+"/"+tokenSuffix):
				c.BotToken = value
			case strings.HasSuffix(name, suffix+"/"+signingSecretSuffix):
				c.SigningSecret = value
			}
		}
		if c.BotToken == "" {
			r.logger.Debug("no bot token stored for model", "model", model, "stage", stage)
			continue
		}
		out[model] = c
	}
	return out, nil
}

// ParameterName returns the full store key for one model credential part.
// Used by provisioning tooling so naming stays in one place.
func (r *Resolver) ParameterName(stage string, model domain.ModelID, signing bool) string {
	part := tokenSuffix
	if signing {
		part = signingSecretSuffix
	}
	return r.stagePath(stage) + model.CredentialSuffix() + "/" + part
}
