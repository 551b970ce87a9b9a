// Package inmem provides an in-memory queue client for tests and local
// development. Queues are created on first use; Publish and Notify share
// the same FIFO semantics.
package inmem

import (
	"context"
	"sync"
)

// QueueClient is a mutex-guarded in-memory implementation of
// messaging.QueueClient.
type QueueClient struct {
	mu     sync.Mutex
	queues map[string][][]byte
}

// NewQueueClient creates an empty in-memory queue client
func NewQueueClient() *QueueClient {
	return &QueueClient{
		queues: make(map[string][][]byte),
	}
}

// Dequeue returns the oldest message on the queue, or (nil, nil) when empty
func (c *QueueClient) Dequeue(ctx context.Context, queue string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	pending := c.queues[queue]
	if len(pending) == 0 {
		return nil, nil
	}

	body := pending[0]
	c.queues[queue] = pending[1:]
	return body, nil
}

// Publish appends a message to the queue
func (c *QueueClient) Publish(ctx context.Context, queue string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	buf := make([]byte, len(body))
	copy(buf, body)
	c.queues[queue] = append(c.queues[queue], buf)
	return nil
}

// Notify appends a message to the queue; in memory there is no weaker
// delivery mode to fall back to
func (c *QueueClient) Notify(ctx context.Context, queue string, body []byte) error {
	return c.Publish(ctx, queue, body)
}

// Len returns the number of messages waiting on the queue
func (c *QueueClient) Len(queue string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.queues[queue])
}
