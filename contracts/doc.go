// Package contracts provides the core message types and interfaces for the ferry messaging engine.
//
// This package defines the envelope every message carries through the system:
//   - Message: Base interface for all messages
//   - BaseMessage: Embeddable struct providing the envelope fields
//   - ErrorDetail: Structured failure info attached to a message on retry
//   - NonRetryableError: Error classification that bypasses the retry budget
//
// All message types are plain JSON-serializable structs; embedding BaseMessage
// is enough to make a type routable by the engine.
package contracts
