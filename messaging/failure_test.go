package messaging

import (
	"context"
	"errors"
	"testing"

	"github.com/ferrymq/ferry-go/contracts"
	"github.com/stretchr/testify/assert"
)

func TestRetryPolicy(t *testing.T) {
	failing := HandlerFunc(func(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
		return nil, errors.New("downstream unavailable")
	})

	t.Run("retryable failure republishes to in queue with incremented attempt", func(t *testing.T) {
		codec := newTestCodec(t)
		client := newFakeQueueClient()
		names := QueueNamesFor("OrderPlaced")

		engine, err := NewHandlerEngine(&OrderPlaced{}, failing, WithCodec(codec))
		assert.NoError(t, err)

		original := newOrderPlaced("o1")
		engine.DispatchOne(context.Background(), client, original)

		republished := client.publishesTo(names.In)
		assert.Len(t, republished, 1)
		assert.Empty(t, client.publishesTo(names.DeadLetter))

		retried := mustDecode(t, codec, republished[0])
		assert.Equal(t, 1, retried.GetRetryAttempts())
		assert.NotNil(t, retried.GetErrorDetail())
		assert.Equal(t, "downstream unavailable", retried.GetErrorDetail().Message)

		stats := engine.GetStats()
		assert.Equal(t, int64(1), stats.TotalFailed)
		assert.Equal(t, int64(1), stats.TotalRetries)
		assert.Zero(t, stats.TotalProcessed)
	})

	t.Run("exhausted retry budget dead-letters without another retry", func(t *testing.T) {
		codec := newTestCodec(t)
		client := newFakeQueueClient()
		names := QueueNamesFor("OrderPlaced")

		engine, err := NewHandlerEngine(&OrderPlaced{}, failing, WithCodec(codec), WithRetryLimit(2))
		assert.NoError(t, err)

		original := newOrderPlaced("o1")
		original.RetryAttempts = 2
		engine.DispatchOne(context.Background(), client, original)

		assert.Empty(t, client.publishesTo(names.In))
		deadLettered := client.publishesTo(names.DeadLetter)
		assert.Len(t, deadLettered, 1)

		msg := mustDecode(t, codec, deadLettered[0])
		assert.Equal(t, 2, msg.GetRetryAttempts())

		stats := engine.GetStats()
		assert.Equal(t, int64(1), stats.TotalFailed)
		// the over-limit attempt does not count as a retry
		assert.Zero(t, stats.TotalRetries)
	})

	t.Run("non-retryable failure skips the retry budget entirely", func(t *testing.T) {
		codec := newTestCodec(t)
		client := newFakeQueueClient()
		names := QueueNamesFor("OrderPlaced")

		poison := HandlerFunc(func(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
			return nil, contracts.MarkNonRetryable(errors.New("malformed order"))
		})
		engine, err := NewHandlerEngine(&OrderPlaced{}, poison, WithCodec(codec))
		assert.NoError(t, err)

		original := newOrderPlaced("o1")
		engine.DispatchOne(context.Background(), client, original)

		assert.Empty(t, client.publishesTo(names.In))
		deadLettered := client.publishesTo(names.DeadLetter)
		assert.Len(t, deadLettered, 1)

		msg := mustDecode(t, codec, deadLettered[0])
		assert.Zero(t, msg.GetRetryAttempts())
		assert.Zero(t, engine.GetStats().TotalRetries)
	})

	t.Run("three retryable failures walk the full retry then dead-letter path", func(t *testing.T) {
		codec := newTestCodec(t)
		names := QueueNamesFor("OrderPlaced")

		engine, err := NewHandlerEngine(&OrderPlaced{}, failing, WithCodec(codec), WithRetryLimit(2))
		assert.NoError(t, err)

		// first failure
		client := newFakeQueueClient()
		engine.DispatchOne(context.Background(), client, newOrderPlaced("o1"))
		republished := client.publishesTo(names.In)
		assert.Len(t, republished, 1)
		first := mustDecode(t, codec, republished[0])
		assert.Equal(t, 1, first.GetRetryAttempts())
		assert.Equal(t, int64(1), engine.GetStats().TotalRetries)

		// second failure, as it would arrive on the next Process call
		client = newFakeQueueClient()
		engine.DispatchOne(context.Background(), client, first)
		republished = client.publishesTo(names.In)
		assert.Len(t, republished, 1)
		second := mustDecode(t, codec, republished[0])
		assert.Equal(t, 2, second.GetRetryAttempts())
		assert.Equal(t, int64(2), engine.GetStats().TotalRetries)

		// third failure exhausts the budget
		client = newFakeQueueClient()
		engine.DispatchOne(context.Background(), client, second)
		assert.Empty(t, client.publishesTo(names.In))
		assert.Len(t, client.publishesTo(names.DeadLetter), 1)
		assert.Equal(t, int64(2), engine.GetStats().TotalRetries)
		assert.Equal(t, int64(3), engine.GetStats().TotalFailed)
	})

	t.Run("handler panic is treated as a handler failure", func(t *testing.T) {
		codec := newTestCodec(t)
		client := newFakeQueueClient()
		names := QueueNamesFor("OrderPlaced")

		panicking := HandlerFunc(func(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
			panic("boom")
		})
		engine, err := NewHandlerEngine(&OrderPlaced{}, panicking, WithCodec(codec))
		assert.NoError(t, err)

		assert.NotPanics(t, func() {
			engine.DispatchOne(context.Background(), client, newOrderPlaced("o1"))
		})

		assert.Len(t, client.publishesTo(names.In), 1)
		assert.Equal(t, int64(1), engine.GetStats().TotalFailed)
	})
}

func TestExceptionHandler(t *testing.T) {
	failing := HandlerFunc(func(ctx context.Context, msg contracts.Message) (contracts.Message, error) {
		return nil, errors.New("downstream unavailable")
	})

	t.Run("custom exception handler replaces the default policy", func(t *testing.T) {
		codec := newTestCodec(t)
		client := newFakeQueueClient()

		var gotMsg contracts.Message
		var gotCause error
		engine, err := NewHandlerEngine(&OrderPlaced{}, failing,
			WithCodec(codec),
			WithExceptionHandler(ExceptionHandlerFunc(func(ctx context.Context, qc QueueClient, msg contracts.Message, cause error) error {
				gotMsg = msg
				gotCause = cause
				return nil
			})),
		)
		assert.NoError(t, err)

		original := newOrderPlaced("o1")
		engine.DispatchOne(context.Background(), client, original)

		assert.Equal(t, original.GetID(), gotMsg.GetID())
		assert.EqualError(t, gotCause, "downstream unavailable")
		// default policy suppressed: nothing republished or dead-lettered
		assert.Empty(t, client.publishes)
		assert.Zero(t, engine.GetStats().TotalRetries)
		assert.Equal(t, int64(1), engine.GetStats().TotalFailed)
	})

	t.Run("exception handler error is swallowed", func(t *testing.T) {
		codec := newTestCodec(t)
		client := newFakeQueueClient()

		engine, err := NewHandlerEngine(&OrderPlaced{}, failing,
			WithCodec(codec),
			WithExceptionHandler(ExceptionHandlerFunc(func(ctx context.Context, qc QueueClient, msg contracts.Message, cause error) error {
				return errors.New("failure handler is broken too")
			})),
		)
		assert.NoError(t, err)

		assert.NotPanics(t, func() {
			engine.DispatchOne(context.Background(), client, newOrderPlaced("o1"))
		})
		assert.Equal(t, int64(1), engine.GetStats().TotalFailed)
	})

	t.Run("exception handler panic is swallowed", func(t *testing.T) {
		codec := newTestCodec(t)
		client := newFakeQueueClient()

		engine, err := NewHandlerEngine(&OrderPlaced{}, failing,
			WithCodec(codec),
			WithExceptionHandler(ExceptionHandlerFunc(func(ctx context.Context, qc QueueClient, msg contracts.Message, cause error) error {
				panic("broken")
			})),
		)
		assert.NoError(t, err)

		assert.NotPanics(t, func() {
			engine.DispatchOne(context.Background(), client, newOrderPlaced("o1"))
		})
	})

	t.Run("default policy reports republish failures without crashing", func(t *testing.T) {
		codec := newTestCodec(t)
		client := newFakeQueueClient()
		client.publishErr = errors.New("broker gone")

		engine, err := NewHandlerEngine(&OrderPlaced{}, failing, WithCodec(codec))
		assert.NoError(t, err)

		assert.NotPanics(t, func() {
			engine.DispatchOne(context.Background(), client, newOrderPlaced("o1"))
		})

		// publish never happened, so the retry was not counted
		assert.Zero(t, engine.GetStats().TotalRetries)
		assert.Equal(t, int64(1), engine.GetStats().TotalFailed)
	})
}

func TestQueueNamesFor(t *testing.T) {
	t.Run("derives four stable names per type", func(t *testing.T) {
		names := QueueNamesFor("OrderPlaced")

		assert.Equal(t, "ferry.priority.OrderPlaced", names.Priority)
		assert.Equal(t, "ferry.in.OrderPlaced", names.In)
		assert.Equal(t, "ferry.out.OrderPlaced", names.Out)
		assert.Equal(t, "ferry.dlq.OrderPlaced", names.DeadLetter)

		assert.Equal(t, names, QueueNamesFor("OrderPlaced"))
	})

	t.Run("distinct types never collide", func(t *testing.T) {
		a := QueueNamesFor("OrderPlaced")
		b := QueueNamesFor("InvoiceCreated")

		assert.NotEqual(t, a.Priority, b.Priority)
		assert.NotEqual(t, a.In, b.In)
		assert.NotEqual(t, a.Out, b.Out)
		assert.NotEqual(t, a.DeadLetter, b.DeadLetter)
	})
}
