package messaging

import (
	"context"
	"fmt"

	"github.com/ferrymq/ferry-go/contracts"
)

// Handler processes one message and optionally returns a reply. A nil
// reply with a nil error means "processed, no response".
type Handler interface {
	Handle(ctx context.Context, msg contracts.Message) (contracts.Message, error)
}

// HandlerFunc is a function adapter for Handler
type HandlerFunc func(ctx context.Context, msg contracts.Message) (contracts.Message, error)

// Handle implements Handler
func (f HandlerFunc) Handle(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
	return f(ctx, msg)
}

// ExceptionHandler decides what happens to a message whose handler failed.
// The engine's default implementation retries up to the configured limit
// and dead-letters afterwards; supply a custom one to replace that policy.
// Errors returned here are logged and never propagated further.
type ExceptionHandler interface {
	HandleFailure(ctx context.Context, client QueueClient, msg contracts.Message, cause error) error
}

// ExceptionHandlerFunc is a function adapter for ExceptionHandler
type ExceptionHandlerFunc func(ctx context.Context, client QueueClient, msg contracts.Message, cause error) error

// HandleFailure implements ExceptionHandler
func (f ExceptionHandlerFunc) HandleFailure(ctx context.Context, client QueueClient, msg contracts.Message, cause error) error {
	return f(ctx, client, msg, cause)
}

// Typed adapts a handler of a concrete message type to the untyped Handler
// interface, performing the type assertion once. A mismatch means the
// engine was wired to the wrong queue set and is treated as non-retryable.
func Typed[T contracts.Message](fn func(ctx context.Context, msg T) (contracts.Message, error)) Handler {
	return HandlerFunc(func(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
		typed, ok := msg.(T)
		if !ok {
			return nil, contracts.MarkNonRetryable(fmt.Errorf("unexpected message type %T", msg))
		}
		return fn(ctx, typed)
	})
}
