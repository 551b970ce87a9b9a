// Package rabbitmq provides a RabbitMQ-backed queue client for the ferry
// engine. Dequeue maps to basic.get so the engine's non-blocking drain
// contract holds; Publish uses persistent delivery, Notify transient.
package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/ferrymq/ferry-go/messaging"
)

// dialFunc connects to a broker. Replaced in tests.
type dialFunc func(url string) (*amqp.Connection, error)

// QueueClient implements messaging.QueueClient over a single AMQP channel.
// The connection is established lazily and re-established on demand after
// a broker failure.
type QueueClient struct {
	url     string
	dial    dialFunc
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
}

// QueueClientOption configures the queue client
type QueueClientOption func(*QueueClient)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) QueueClientOption {
	return func(c *QueueClient) {
		c.logger = logger
	}
}

// NewQueueClient creates a queue client for the given AMQP URL. No
// connection is made until the first operation.
func NewQueueClient(url string, options ...QueueClientOption) *QueueClient {
	c := &QueueClient{
		url:    url,
		dial:   amqp.Dial,
		logger: slog.Default(),
	}

	for _, opt := range options {
		opt(c)
	}

	return c
}

// Dequeue fetches one message via basic.get, returning (nil, nil) when the
// queue is empty. Messages are auto-acknowledged: retry durability is the
// engine's concern, carried on the message itself.
func (c *QueueClient) Dequeue(ctx context.Context, queue string) ([]byte, error) {
	ch, err := c.getChannel(ctx)
	if err != nil {
		return nil, err
	}

	delivery, ok, err := ch.Get(queue, true)
	if err != nil {
		c.invalidate()
		return nil, fmt.Errorf("failed to get from %s: %w", queue, err)
	}
	if !ok {
		return nil, nil
	}

	return delivery.Body, nil
}

// Publish durably enqueues a message onto the named queue
func (c *QueueClient) Publish(ctx context.Context, queue string, body []byte) error {
	return c.publish(ctx, queue, body, amqp.Persistent)
}

// Notify enqueues a message with transient delivery; no guarantee survives
// a broker restart, matching the fire-and-forget contract
func (c *QueueClient) Notify(ctx context.Context, queue string, body []byte) error {
	return c.publish(ctx, queue, body, amqp.Transient)
}

func (c *QueueClient) publish(ctx context.Context, queue string, body []byte, deliveryMode uint8) error {
	ch, err := c.getChannel(ctx)
	if err != nil {
		return err
	}

	err = ch.PublishWithContext(ctx,
		"",    // default exchange routes by queue name
		queue, // routing key
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: deliveryMode,
		},
	)
	if err != nil {
		c.invalidate()
		return fmt.Errorf("failed to publish to %s: %w", queue, err)
	}

	return nil
}

// DeclareQueueSet declares the four queues of a message type as durable
// queues so they survive broker restarts.
func (c *QueueClient) DeclareQueueSet(ctx context.Context, names messaging.QueueNameSet) error {
	ch, err := c.getChannel(ctx)
	if err != nil {
		return err
	}

	for _, queue := range []string{names.Priority, names.In, names.Out, names.DeadLetter} {
		_, err := ch.QueueDeclare(
			queue,
			true,  // durable
			false, // auto-delete
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			c.invalidate()
			return fmt.Errorf("failed to declare queue %s: %w", queue, err)
		}
	}

	return nil
}

// Close closes the connection if one is open
func (c *QueueClient) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.channel = nil
	if c.conn == nil {
		return nil
	}

	conn := c.conn
	c.conn = nil
	return conn.Close()
}

// getChannel returns the shared channel, dialing the broker if needed
func (c *QueueClient) getChannel(ctx context.Context) (*amqp.Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.channel != nil && c.conn != nil && !c.conn.IsClosed() {
		return c.channel, nil
	}

	conn, err := c.dial(c.url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if c.conn != nil {
		c.conn.Close()
	}
	c.conn = conn
	c.channel = channel
	c.logger.Info("connected to broker")

	return channel, nil
}

// invalidate drops the cached channel so the next operation redials
func (c *QueueClient) invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.channel = nil
}
