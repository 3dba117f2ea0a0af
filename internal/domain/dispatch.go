package domain

import "context"

// Dispatcher invokes the worker process with a payload and does not wait for
// completion. A nil return means the call was accepted, nothing more; the
// eventual business outcome is never observable through this interface.
type Dispatcher interface {
	Dispatch(ctx context.Context, target string, payload DispatchPayload) error
}
