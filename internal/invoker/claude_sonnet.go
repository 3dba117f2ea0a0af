package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"bedrockbot/internal/domain"
)

const (
	sonnetModelID          = "anthropic.claude-sonnet-4-20250514-v1:0"
	sonnetAnthropicVersion = "bedrock-2023-05-31"
	sonnetMaxTokens        = 512
	sonnetTemperature      = 0.5
)

// ClaudeSonnet invokes the sonnet text model through the raw invocation API
// with an anthropic messages body and posts the extracted text reply.
type ClaudeSonnet struct {
	backend domain.ModelBackend
	logger  *slog.Logger
}

func NewClaudeSonnet(backend domain.ModelBackend, logger *slog.Logger) *ClaudeSonnet {
	return &ClaudeSonnet{backend: backend, logger: logger}
}

func (c *ClaudeSonnet) Model() domain.ModelID { return domain.ModelClaudeSonnet }

type sonnetRequest struct {
	AnthropicVersion string          `json:"anthropic_version"`
	MaxTokens        int             `json:"max_tokens"`
	Temperature      float64         `json:"temperature"`
	Messages         []sonnetMessage `json:"messages"`
}

type sonnetMessage struct {
	Role    string          `json:"role"`
	Content []sonnetContent `json:"content"`
}

type sonnetContent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type sonnetResponse struct {
	Content []sonnetContent `json:"content"`
}

func (c *ClaudeSonnet) Invoke(ctx context.Context, channelID, inputText string, sink domain.Notifier) error {
	if err := c.invoke(ctx, channelID, inputText, sink); err != nil {
		reportFailure(ctx, sink, c.logger, c.Model(), channelID, err)
		return err
	}
	return nil
}

func (c *ClaudeSonnet) invoke(ctx context.Context, channelID, inputText string, sink domain.Notifier) error {
	if err := validateArgs(channelID, inputText); err != nil {
		return err
	}

	body, err := json.Marshal(sonnetRequest{
		AnthropicVersion: sonnetAnthropicVersion,
		MaxTokens:        sonnetMaxTokens,
		Temperature:      sonnetTemperature,
		Messages: []sonnetMessage{{
			Role:    "user",
			Content: []sonnetContent{{Type: "text", Text: inputText}},
		}},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	raw, err := c.backend.InvokeModel(ctx, sonnetModelID, body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendInvocation, err)
	}

	var resp sonnetResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrBackendInvocation, err)
	}
	if len(resp.Content) == 0 {
		return fmt.Errorf("%w: response has no content blocks", domain.ErrBackendInvocation)
	}

	return sink.PostText(ctx, channelID, resp.Content[0].Text)
}
