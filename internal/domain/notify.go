package domain

import "context"

// Notifier delivers a result or an error message to a chat channel. It is the
// single egress point for everything a user ever sees; it does not retry.
type Notifier interface {
	PostText(ctx context.Context, channelID, text string) error
	PostFile(ctx context.Context, channelID string, content []byte, filename, title, comment string) error
}

// NotifierFactory builds a Notifier bound to one bot token. The worker calls
// it per invocation so clients are never shared across credentials.
type NotifierFactory func(botToken string) Notifier
