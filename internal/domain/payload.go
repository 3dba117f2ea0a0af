package domain

import "fmt"

// ModelID identifies a generative model backend. The set of valid values is
// closed: adding a backend means adding a constant here, a credential suffix,
// and one invoker implementation.
type ModelID string

const (
	ModelClaudeSonnet     ModelID = "claude_sonnet"
	ModelClaudeOpus       ModelID = "claude_opus"
	ModelStableImageUltra ModelID = "stable_image_ultra"
)

// KnownModels returns every supported model identifier.
func KnownModels() []ModelID {
	return []ModelID{ModelClaudeSonnet, ModelClaudeOpus, ModelStableImageUltra}
}

// Known reports whether m is a member of the supported model set.
func (m ModelID) Known() bool {
	switch m {
	case ModelClaudeSonnet, ModelClaudeOpus, ModelStableImageUltra:
		return true
	}
	return false
}

// CredentialSuffix returns the upper-cased parameter-name segment used for
// this model's credential lookup (e.g. "CLAUDE_SONNET").
func (m ModelID) CredentialSuffix() string {
	suffix := make([]byte, len(m))
	for i := 0; i < len(m); i++ {
		c := m[i]
		if c >= 'a' && c <= 'z' {
			c -= 'a' - 'A'
		}
		suffix[i] = c
	}
	return string(suffix)
}

// DispatchPayload is the normalized unit handed from the ingress router to the
// worker. It is the exact wire shape of the fire-and-forget dispatch call.
type DispatchPayload struct {
	Model     ModelID `json:"model"`
	ChannelID string  `json:"channel_id"`
	InputText string  `json:"input_text"`
}

// Validate checks the payload is actionable. A payload with an unknown model
// or a missing field must be treated as an invalid request, never a crash.
func (p DispatchPayload) Validate() error {
	if !p.Model.Known() {
		return fmt.Errorf("%w: model %q", ErrUnknownModel, string(p.Model))
	}
	if p.ChannelID == "" || p.InputText == "" {
		return fmt.Errorf("%w: channel ID=%q, input text=%q", ErrInvalidRequest, p.ChannelID, p.InputText)
	}
	return nil
}
