package invoker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"bedrockbot/internal/domain"
)

const (
	opusMaxTokens   = 512
	opusTemperature = 0.5
	opusTopP        = 0.9
)

// ClaudeOpus invokes the opus text model through the conversational API
// against a configured inference profile.
type ClaudeOpus struct {
	backend domain.ModelBackend
	profile string // inference-profile identifier, from configuration
	logger  *slog.Logger
}

func NewClaudeOpus(backend domain.ModelBackend, profile string, logger *slog.Logger) *ClaudeOpus {
	return &ClaudeOpus{backend: backend, profile: profile, logger: logger}
}

func (c *ClaudeOpus) Model() domain.ModelID { return domain.ModelClaudeOpus }

type converseRequest struct {
	Messages        []converseMessage `json:"messages"`
	InferenceConfig converseInference `json:"inferenceConfig"`
}

type converseMessage struct {
	Role    string            `json:"role"`
	Content []converseContent `json:"content"`
}

type converseContent struct {
	Text string `json:"text"`
}

type converseInference struct {
	MaxTokens   int     `json:"maxTokens"`
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"topP"`
}

type converseResponse struct {
	Output struct {
		Message converseMessage `json:"message"`
	} `json:"output"`
}

func (c *ClaudeOpus) Invoke(ctx context.Context, channelID, inputText string, sink domain.Notifier) error {
	if err := c.invoke(ctx, channelID, inputText, sink); err != nil {
		reportFailure(ctx, sink, c.logger, c.Model(), channelID, err)
		return err
	}
	return nil
}

func (c *ClaudeOpus) invoke(ctx context.Context, channelID, inputText string, sink domain.Notifier) error {
	if err := validateArgs(channelID, inputText); err != nil {
		return err
	}
	if c.profile == "" {
		return fmt.Errorf("inference profile for %s is not configured", c.Model())
	}

	body, err := json.Marshal(converseRequest{
		Messages: []converseMessage{{
			Role:    "user",
			Content: []converseContent{{Text: inputText}},
		}},
		InferenceConfig: converseInference{
			MaxTokens:   opusMaxTokens,
			Temperature: opusTemperature,
			TopP:        opusTopP,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	raw, err := c.backend.Converse(ctx, c.profile, body)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendInvocation, err)
	}

	var resp converseResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return fmt.Errorf("%w: decode response: %v", domain.ErrBackendInvocation, err)
	}
	if len(resp.Output.Message.Content) == 0 {
		return fmt.Errorf("%w: response has no content blocks", domain.ErrBackendInvocation)
	}

	return sink.PostText(ctx, channelID, resp.Output.Message.Content[0].Text)
}
