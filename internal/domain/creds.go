package domain

import "context"

// Credentials holds one model's chat-platform secrets. SigningSecret is only
// populated (and only required) on the ingress side.
type Credentials struct {
	BotToken      string
	SigningSecret string
}

// ParameterSource is a hierarchical key-value lookup service. GetByPath
// returns every parameter stored under the given path prefix, keyed by full
// parameter name. Each call is a fresh remote lookup: slow and failable.
type ParameterSource interface {
	GetByPath(ctx context.Context, path string) (map[string]string, error)
}

// CredentialResolver looks up per-model, per-stage chat-platform credentials.
type CredentialResolver interface {
	Resolve(ctx context.Context, stage string, model ModelID) (Credentials, error)
	ResolveAll(ctx context.Context, stage string) (map[ModelID]Credentials, error)
}
