package domain

import "errors"

// Sentinel errors for the relay pipeline. Callers match with errors.Is; the
// wrapped message carries the request-specific detail.
var (
	// ErrInvalidRequest marks a payload missing its channel ID or input text.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrUnknownEndpoint marks an ingress request on a path with no model mapping.
	ErrUnknownEndpoint = errors.New("unknown endpoint")

	// ErrUnknownModel marks a payload whose model is not in the supported set.
	ErrUnknownModel = errors.New("unknown model")

	// ErrMisconfiguredTarget marks a dispatch attempted with no worker target.
	ErrMisconfiguredTarget = errors.New("worker target not configured")

	// ErrMissingCredentials marks a credential lookup that found no bot token.
	ErrMissingCredentials = errors.New("required Slack credentials not found")

	// ErrBackendInvocation marks a model call or response-parsing failure.
	ErrBackendInvocation = errors.New("backend invocation failed")
)
