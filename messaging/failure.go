package messaging

import (
	"context"
	"fmt"

	"github.com/ferrymq/ferry-go/contracts"
)

// retryOrDeadLetter is the built-in failure policy. A retryable error with
// retry budget left republishes the message onto its own In queue with the
// attempt counter incremented and the failure attached; anything else goes
// to the dead-letter queue. The retry-exhausted path deliberately does not
// increment totalRetries.
func (e *HandlerEngine) retryOrDeadLetter(ctx context.Context, client QueueClient, msg contracts.Message, cause error) error {
	if contracts.IsRetryable(cause) && msg.GetRetryAttempts() < e.retryLimit {
		msg.IncrementRetryAttempts()
		msg.SetErrorDetail(contracts.NewErrorDetail(cause))

		body, err := e.codec.Marshal(msg)
		if err != nil {
			return fmt.Errorf("failed to encode message for retry: %w", err)
		}
		if err := client.Publish(ctx, e.names.In, body); err != nil {
			return fmt.Errorf("failed to republish message for retry: %w", err)
		}

		e.totalRetries.Add(1)
		e.logger.Warn("message scheduled for retry",
			"messageId", msg.GetID(),
			"messageType", e.typeName,
			"attempt", msg.GetRetryAttempts(),
			"retryLimit", e.retryLimit,
			"error", cause,
		)
		return nil
	}

	body, err := e.codec.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to encode message for dead-letter: %w", err)
	}
	if err := client.Publish(ctx, e.names.DeadLetter, body); err != nil {
		return fmt.Errorf("failed to publish to dead-letter queue: %w", err)
	}

	e.logger.Error("message dead-lettered",
		"messageId", msg.GetID(),
		"messageType", e.typeName,
		"attempts", msg.GetRetryAttempts(),
		"retryable", contracts.IsRetryable(cause),
		"error", cause,
	)
	return nil
}
