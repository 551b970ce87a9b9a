package messaging

import (
	"context"

	"github.com/ferrymq/ferry-go/contracts"
)

// QueueClient is the transport capability the engine borrows for the
// duration of one Process call. It is never retained or closed by the
// engine; ownership stays with the caller.
type QueueClient interface {
	// Dequeue returns the next raw message from the named queue, or
	// (nil, nil) when no message is immediately available.
	Dequeue(ctx context.Context, queue string) ([]byte, error)

	// Publish durably enqueues a raw message onto the named queue.
	Publish(ctx context.Context, queue string, body []byte) error

	// Notify enqueues a raw message onto the named queue with
	// fire-and-forget semantics. Transports may implement it identically
	// to Publish, but it is a distinct call site used for "processed, no
	// reply" signaling and carries no delivery guarantee.
	Notify(ctx context.Context, queue string, body []byte) error
}

// OneWayClient delivers a reply directly to a caller, bypassing the queue.
// A send error means "delivery unavailable" and triggers the durable queue
// fallback; it is never fatal.
type OneWayClient interface {
	SendOneWay(ctx context.Context, msg contracts.Message) error
}

// ReplyClientFactory resolves a direct reply client for a queue name.
// Returning nil means no direct path exists and the reply goes through
// the queue.
type ReplyClientFactory func(queue string) OneWayClient

// HandlerDisposer is an optional capability of the service owning an
// engine. When the owner implements it, Close notifies it so the service
// can deregister the handler centrally.
type HandlerDisposer interface {
	DisposeHandler(typeName string)
}
