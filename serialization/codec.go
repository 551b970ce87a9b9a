package serialization

import (
	"encoding/json"
	"fmt"

	"github.com/ferrymq/ferry-go/contracts"
)

// MessageCodec turns messages into bytes and back. The engine treats the
// codec as opaque; JSONCodec is the default implementation.
type MessageCodec interface {
	// Marshal serializes a message to bytes
	Marshal(msg contracts.Message) ([]byte, error)

	// Unmarshal deserializes bytes to a typed message
	Unmarshal(data []byte) (contracts.Message, error)
}

// JSONCodec implements MessageCodec using JSON. The message's own "type"
// field is the discriminator used to locate the concrete Go type in the
// registry.
type JSONCodec struct {
	registry TypeRegistry
}

// JSONCodecOption configures the JSON codec
type JSONCodecOption func(*JSONCodec)

// WithRegistry sets the type registry
func WithRegistry(registry TypeRegistry) JSONCodecOption {
	return func(c *JSONCodec) {
		c.registry = registry
	}
}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec(opts ...JSONCodecOption) *JSONCodec {
	c := &JSONCodec{
		registry: NewTypeRegistry(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Registry returns the codec's type registry
func (c *JSONCodec) Registry() TypeRegistry {
	return c.registry
}

// Marshal serializes a message to bytes
func (c *JSONCodec) Marshal(msg contracts.Message) ([]byte, error) {
	if msg == nil {
		return nil, fmt.Errorf("message cannot be nil")
	}
	if msg.GetType() == "" {
		return nil, fmt.Errorf("message %s has no type", msg.GetID())
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s: %w", msg.GetType(), err)
	}

	return data, nil
}

// Unmarshal deserializes bytes to a typed message
func (c *JSONCodec) Unmarshal(data []byte) (contracts.Message, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}

	var probe struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to read message type: %w", err)
	}
	if probe.Type == "" {
		return nil, fmt.Errorf("message has no type field")
	}

	instance, err := c.registry.CreateInstance(probe.Type)
	if err != nil {
		return nil, fmt.Errorf("failed to create instance: %w", err)
	}

	if err := json.Unmarshal(data, instance); err != nil {
		return nil, fmt.Errorf("failed to unmarshal into type %s: %w", probe.Type, err)
	}

	msg, ok := instance.(contracts.Message)
	if !ok {
		return nil, fmt.Errorf("type %s does not implement Message interface", probe.Type)
	}

	return msg, nil
}
