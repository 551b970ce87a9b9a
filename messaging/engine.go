package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync/atomic"

	"github.com/ferrymq/ferry-go/contracts"
	"github.com/ferrymq/ferry-go/serialization"
)

// HandlerEngine consumes one message type's queue set. It is a
// single-consumer engine: one Process invocation must run to completion
// before another begins. The queue client is rebound on every Process
// call and never cached across calls.
type HandlerEngine struct {
	typeName     string
	names        QueueNameSet
	handler      Handler
	onFailure    ExceptionHandler
	retryLimit   int
	replyClients ReplyClientFactory
	codec        serialization.MessageCodec
	owner        interface{}
	logger       *slog.Logger

	totalProcessed        atomic.Int64
	totalFailed           atomic.Int64
	totalRetries          atomic.Int64
	totalNormalReceived   atomic.Int64
	totalPriorityReceived atomic.Int64
}

// HandlerStats is an immutable snapshot of the engine's counters.
type HandlerStats struct {
	TypeName              string `json:"typeName"`
	TotalProcessed        int64  `json:"totalProcessed"`
	TotalFailed           int64  `json:"totalFailed"`
	TotalRetries          int64  `json:"totalRetries"`
	TotalNormalReceived   int64  `json:"totalNormalReceived"`
	TotalPriorityReceived int64  `json:"totalPriorityReceived"`
}

// EngineOption configures the HandlerEngine
type EngineOption func(*HandlerEngine)

// WithEngineLogger sets the logger
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *HandlerEngine) {
		e.logger = logger
	}
}

// WithRetryLimit sets the retry limit. A limit of n allows n+1 total
// attempts before a message is dead-lettered. Default is 2.
func WithRetryLimit(limit int) EngineOption {
	return func(e *HandlerEngine) {
		e.retryLimit = limit
	}
}

// WithExceptionHandler replaces the built-in retry/dead-letter policy
func WithExceptionHandler(handler ExceptionHandler) EngineOption {
	return func(e *HandlerEngine) {
		e.onFailure = handler
	}
}

// WithReplyClientFactory sets the factory used to resolve direct reply clients
func WithReplyClientFactory(factory ReplyClientFactory) EngineOption {
	return func(e *HandlerEngine) {
		e.replyClients = factory
	}
}

// WithCodec sets the message codec. The caller owns type registration
// for a custom codec.
func WithCodec(codec serialization.MessageCodec) EngineOption {
	return func(e *HandlerEngine) {
		e.codec = codec
	}
}

// WithQueueNames overrides the derived queue name set. The override only
// covers the four queues of this engine's own message type; when a reply
// carries no ReplyTo, its fallback target is still derived from the reply
// type's name via QueueNamesFor, since the reply belongs to a different
// queue set than the one being overridden.
func WithQueueNames(names QueueNameSet) EngineOption {
	return func(e *HandlerEngine) {
		e.names = names
	}
}

// WithOwner sets the service owning this engine. If the owner implements
// HandlerDisposer it is notified on Close.
func WithOwner(owner interface{}) EngineOption {
	return func(e *HandlerEngine) {
		e.owner = owner
	}
}

// NewHandlerEngine creates an engine for the message type of prototype.
// The prototype is only used to derive the type name and queue set and to
// register the type with the default codec.
func NewHandlerEngine(prototype contracts.Message, handler Handler, options ...EngineOption) (*HandlerEngine, error) {
	if prototype == nil {
		return nil, fmt.Errorf("prototype cannot be nil")
	}
	if handler == nil {
		return nil, fmt.Errorf("handler cannot be nil")
	}

	typeName := simpleTypeName(prototype)
	if typeName == "" {
		return nil, fmt.Errorf("message type must have a name")
	}

	e := &HandlerEngine{
		typeName:   typeName,
		names:      QueueNamesFor(typeName),
		handler:    handler,
		retryLimit: 2,
		logger:     slog.Default(),
	}

	for _, opt := range options {
		opt(e)
	}

	if e.retryLimit < 0 {
		return nil, fmt.Errorf("retry limit cannot be negative")
	}

	if e.codec == nil {
		codec := serialization.NewJSONCodec()
		if err := codec.Registry().RegisterType(prototype); err != nil {
			return nil, fmt.Errorf("failed to register message type: %w", err)
		}
		e.codec = codec
	}

	return e, nil
}

// TypeName returns the name of the message type this engine consumes
func (e *HandlerEngine) TypeName() string {
	return e.typeName
}

// QueueNames returns the queue name set this engine operates on
func (e *HandlerEngine) QueueNames() QueueNameSet {
	return e.names
}

// Process drains the priority queue, then the normal queue, and repeats
// until one full pass yields nothing. Priority messages are always
// attempted first on every pass, so sustained priority traffic can starve
// the normal queue; that is the intended policy. Handler and reply
// transport failures are absorbed internally. A dequeue or decode error
// is logged and ends the call; nothing propagates to the caller.
func (e *HandlerEngine) Process(ctx context.Context, client QueueClient) {
	if client == nil {
		e.logger.Error("queue client is nil", "messageType", e.typeName)
		return
	}

	for {
		hadMessages := false

		n, err := e.drain(ctx, client, e.names.Priority, &e.totalPriorityReceived)
		if err != nil {
			e.logger.Error("drain aborted", "messageType", e.typeName, "queue", e.names.Priority, "error", err)
			return
		}
		hadMessages = hadMessages || n > 0

		n, err = e.drain(ctx, client, e.names.In, &e.totalNormalReceived)
		if err != nil {
			e.logger.Error("drain aborted", "messageType", e.typeName, "queue", e.names.In, "error", err)
			return
		}
		hadMessages = hadMessages || n > 0

		if !hadMessages {
			return
		}
	}
}

// drain dequeues and dispatches until the queue reports empty, returning
// the number of messages consumed.
func (e *HandlerEngine) drain(ctx context.Context, client QueueClient, queue string, received *atomic.Int64) (int, error) {
	count := 0
	for {
		body, err := client.Dequeue(ctx, queue)
		if err != nil {
			return count, fmt.Errorf("dequeue from %s failed: %w", queue, err)
		}
		if body == nil {
			return count, nil
		}

		msg, err := e.codec.Unmarshal(body)
		if err != nil {
			return count, fmt.Errorf("failed to decode message from %s: %w", queue, err)
		}

		received.Add(1)
		count++
		e.dispatchOne(ctx, client, msg, body)
	}
}

// DispatchOne invokes the handler for a single message and routes the
// outcome. Handler errors feed the failure policy; they never escape.
func (e *HandlerEngine) DispatchOne(ctx context.Context, client QueueClient, msg contracts.Message) {
	e.dispatchOne(ctx, client, msg, nil)
}

func (e *HandlerEngine) dispatchOne(ctx context.Context, client QueueClient, msg contracts.Message, raw []byte) {
	result, err := e.invokeHandler(ctx, msg)
	if err != nil {
		e.totalFailed.Add(1)
		e.handleFailure(ctx, client, msg, err)
		return
	}

	e.totalProcessed.Add(1)

	if isNilMessage(result) {
		e.notifyProcessed(ctx, client, msg, raw)
		return
	}

	e.routeResult(ctx, client, msg, result)
}

// invokeHandler calls the user handler, converting a panic into an error
// so a misbehaving handler cannot crash the drain loop.
func (e *HandlerEngine) invokeHandler(ctx context.Context, msg contracts.Message) (result contracts.Message, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return e.handler.Handle(ctx, msg)
}

// notifyProcessed signals "processed, no reply" on the Out queue with the
// original message bytes.
func (e *HandlerEngine) notifyProcessed(ctx context.Context, client QueueClient, msg contracts.Message, raw []byte) {
	body := raw
	if body == nil {
		var err error
		body, err = e.codec.Marshal(msg)
		if err != nil {
			e.logger.Error("failed to encode processed notification", "messageId", msg.GetID(), "error", err)
			return
		}
	}

	if err := client.Notify(ctx, e.names.Out, body); err != nil {
		e.logger.Error("failed to notify out queue", "messageId", msg.GetID(), "queue", e.names.Out, "error", err)
	}
}

// routeResult delivers a handler reply: direct one-way send when a reply
// client resolves, durable queue publish otherwise. Exactly one delivery
// is attempted to completion; the queue path absorbs a failed direct send
// so a reply is never silently dropped. A handler may return a bare
// struct, so the reply is stamped with any missing envelope fields before
// either delivery path runs.
func (e *HandlerEngine) routeResult(ctx context.Context, client QueueClient, msg contracts.Message, result contracts.Message) {
	result.Stamp(simpleTypeName(result))
	result.SetReplyID(msg.GetID())

	target := msg.GetReplyTo()
	if target == "" {
		target = QueueNamesFor(simpleTypeName(result)).In
	}

	if e.replyClients != nil {
		if rc := e.replyClients(target); rc != nil {
			err := rc.SendOneWay(ctx, result)
			if err == nil {
				return
			}
			e.logger.Warn("direct reply delivery failed, falling back to queue",
				"messageId", msg.GetID(), "queue", target, "error", err)
		}
	}

	body, err := e.codec.Marshal(result)
	if err != nil {
		e.logger.Error("failed to encode reply", "messageId", msg.GetID(), "queue", target, "error", err)
		return
	}

	if err := client.Publish(ctx, target, body); err != nil {
		e.logger.Error("failed to publish reply", "messageId", msg.GetID(), "queue", target, "error", err)
	}
}

// handleFailure runs the configured exception handler. Whatever that
// handler does, failure handling must never crash the drain loop: errors
// and panics from it are logged and swallowed here.
func (e *HandlerEngine) handleFailure(ctx context.Context, client QueueClient, msg contracts.Message, cause error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("exception handler panicked", "messageId", msg.GetID(), "panic", r)
		}
	}()

	handler := e.onFailure
	if handler == nil {
		handler = ExceptionHandlerFunc(e.retryOrDeadLetter)
	}

	if err := handler.HandleFailure(ctx, client, msg, cause); err != nil {
		e.logger.Error("exception handler failed", "messageId", msg.GetID(), "error", err)
	}
}

// GetStats returns an immutable snapshot of the engine's counters. Safe
// to call from a monitoring goroutine at any cadence.
func (e *HandlerEngine) GetStats() HandlerStats {
	return HandlerStats{
		TypeName:              e.typeName,
		TotalProcessed:        e.totalProcessed.Load(),
		TotalFailed:           e.totalFailed.Load(),
		TotalRetries:          e.totalRetries.Load(),
		TotalNormalReceived:   e.totalNormalReceived.Load(),
		TotalPriorityReceived: e.totalPriorityReceived.Load(),
	}
}

// Close notifies the owning service's disposer capability, if any. The
// engine owns no resources of its own.
func (e *HandlerEngine) Close() error {
	if d, ok := e.owner.(HandlerDisposer); ok {
		d.DisposeHandler(e.typeName)
	}
	return nil
}

// simpleTypeName returns the unqualified struct name of a message value
func simpleTypeName(v interface{}) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// isNilMessage reports whether a handler result is absent, covering both
// a nil interface and a typed nil pointer inside the interface.
func isNilMessage(msg contracts.Message) bool {
	if msg == nil {
		return true
	}
	v := reflect.ValueOf(msg)
	return v.Kind() == reflect.Ptr && v.IsNil()
}
