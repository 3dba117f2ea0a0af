package domain

import "context"

// ModelBackend is the opaque generative-model runtime. Each invoker builds its
// own model-specific JSON body and parses its own response shape; the backend
// only moves bytes. Both calls block for the duration of model generation.
type ModelBackend interface {
	// InvokeModel calls the raw invocation API for the given model ID.
	InvokeModel(ctx context.Context, modelID string, body []byte) ([]byte, error)

	// Converse calls the conversational API for the given model or
	// inference-profile ID.
	Converse(ctx context.Context, modelID string, body []byte) ([]byte, error)
}

// Invoker translates user text into one backend-specific generation request
// and forwards the result (or a user-visible error) to the notifier. Failures
// are fully handled inside Invoke — logged and, when a channel is known,
// posted to the user. The returned error is for accounting only: there is no
// caller waiting on the fire-and-forget side, so callers must neither retry
// nor re-notify.
type Invoker interface {
	Model() ModelID
	Invoke(ctx context.Context, channelID, inputText string, sink Notifier) error
}
