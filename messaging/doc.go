// Package messaging provides the ferry consumer engine.
//
// The central type is HandlerEngine: a single-consumer engine bound to one
// message type that drains the type's priority and normal queues, dispatches
// each message to a user-supplied handler, and routes the outcome:
//   - a reply message goes to the caller's ReplyTo queue (or the reply
//     type's own In queue), via a direct one-way client when available with
//     a durable queue publish as fallback
//   - a nil reply signals "processed, no response" on the Out queue
//   - a handler error runs the failure policy: bounded retry with the
//     attempt counter carried on the message itself, then dead-lettering
//
// Example usage:
//
//	engine, err := messaging.NewHandlerEngine(&OrderPlaced{},
//		messaging.Typed[*OrderPlaced](func(ctx context.Context, msg *OrderPlaced) (contracts.Message, error) {
//			invoice := &InvoiceCreated{BaseMessage: contracts.NewBaseMessage("InvoiceCreated")}
//			return invoice, nil
//		}),
//		messaging.WithRetryLimit(2),
//	)
//	if err != nil {
//		return err
//	}
//	for {
//		engine.Process(ctx, client) // client is rebound on every call
//		time.Sleep(pollInterval)
//	}
//
// One Process invocation must run to completion before the next begins;
// the engine is deliberately single-threaded and holds no internal locks
// beyond atomic counters for the stats snapshot.
package messaging
