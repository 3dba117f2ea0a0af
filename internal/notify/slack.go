// Package notify is the single egress point to Slack: every model result and
// every user-visible error goes out through a Notifier built here.
package notify

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"bedrockbot/internal/domain"

	"github.com/slack-go/slack"
)

const slackMaxMsgLen = 4000

// SlackNotifier implements domain.Notifier over the Slack Web API. One
// instance is bound to one bot token; the worker builds a fresh one per
// invocation so clients are never shared across credentials.
type SlackNotifier struct {
	client *slack.Client
	logger *slog.Logger
}

// NewSlack creates a notifier bound to the given bot token.
func NewSlack(botToken string, logger *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		client: slack.New(botToken),
		logger: logger,
	}
}

// Factory returns a domain.NotifierFactory closing over the logger.
func Factory(logger *slog.Logger) domain.NotifierFactory {
	return func(botToken string) domain.Notifier {
		return NewSlack(botToken, logger)
	}
}

// PostText posts a message to the channel, splitting it over Slack's
// per-message length limit. No retry on failure; the platform result is
// surfaced to the caller.
func (s *SlackNotifier) PostText(ctx context.Context, channelID, text string) error {
	for _, chunk := range splitMessage(text, slackMaxMsgLen) {
		_, _, err := s.client.PostMessageContext(
			ctx,
			channelID,
			slack.MsgOptionText(chunk, false),
		)
		if err != nil {
			return fmt.Errorf("slack post to %s: %w", channelID, err)
		}
	}
	s.logger.Debug("posted message", "channel", channelID, "content_len", len(text))
	return nil
}

// PostFile uploads binary content to the channel with a title and comment.
func (s *SlackNotifier) PostFile(ctx context.Context, channelID string, content []byte, filename, title, comment string) error {
	_, err := s.client.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
		Channel:        channelID,
		Reader:         bytes.NewReader(content),
		FileSize:       len(content),
		Filename:       filename,
		Title:          title,
		InitialComment: comment,
	})
	if err != nil {
		return fmt.Errorf("slack upload to %s: %w", channelID, err)
	}
	s.logger.Debug("uploaded file", "channel", channelID, "filename", filename, "size", len(content))
	return nil
}

// splitMessage cuts msg into chunks of at most maxLen, preferring to break at
// a newline past the midpoint.
func splitMessage(msg string, maxLen int) []string {
	if len(msg) <= maxLen {
		return []string{msg}
	}

	var chunks []string
	for len(msg) > 0 {
		if len(msg) <= maxLen {
			chunks = append(chunks, msg)
			break
		}
		cut := maxLen
		if idx := strings.LastIndex(msg[:maxLen], "\n"); idx > maxLen/2 {
			cut = idx + 1
		}
		chunks = append(chunks, msg[:cut])
		msg = msg[cut:]
	}
	return chunks
}
