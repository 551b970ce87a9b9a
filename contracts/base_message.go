package contracts

import (
	"time"

	"github.com/google/uuid"
)

// BaseMessage provides common envelope fields for all message types.
// Embed it in a concrete message struct to make the type routable.
type BaseMessage struct {
	ID            string       `json:"id"`
	Timestamp     time.Time    `json:"timestamp"`
	Type          string       `json:"type"`
	ReplyTo       string       `json:"replyTo,omitempty"`
	ReplyID       string       `json:"replyId,omitempty"`
	RetryAttempts int          `json:"retryAttempts,omitempty"`
	Error         *ErrorDetail `json:"error,omitempty"`
}

// NewBaseMessage creates a new base message with generated ID and current timestamp
func NewBaseMessage(messageType string) BaseMessage {
	return BaseMessage{
		ID:        uuid.New().String(),
		Timestamp: time.Now().UTC(),
		Type:      messageType,
	}
}

// Stamp fills in the envelope fields a bare struct lacks: a generated ID,
// the current timestamp and the given type name. Fields that already hold
// a value are left untouched, so stamping an already-complete message is
// a no-op.
func (m *BaseMessage) Stamp(messageType string) {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.Timestamp.IsZero() {
		m.Timestamp = time.Now().UTC()
	}
	if m.Type == "" {
		m.Type = messageType
	}
}

// GetID returns the message ID
func (m BaseMessage) GetID() string {
	return m.ID
}

// GetTimestamp returns the message timestamp
func (m BaseMessage) GetTimestamp() time.Time {
	return m.Timestamp
}

// GetType returns the message type
func (m BaseMessage) GetType() string {
	return m.Type
}

// GetReplyTo returns the queue name a reply should be routed to
func (m BaseMessage) GetReplyTo() string {
	return m.ReplyTo
}

// SetReplyTo sets the queue name a reply should be routed to
func (m *BaseMessage) SetReplyTo(replyTo string) {
	m.ReplyTo = replyTo
}

// GetReplyID returns the ID of the message this message replies to
func (m BaseMessage) GetReplyID() string {
	return m.ReplyID
}

// SetReplyID sets the ID of the message this message replies to
func (m *BaseMessage) SetReplyID(replyID string) {
	m.ReplyID = replyID
}

// GetRetryAttempts returns how many times this message has been retried
func (m BaseMessage) GetRetryAttempts() int {
	return m.RetryAttempts
}

// IncrementRetryAttempts increments the retry counter
func (m *BaseMessage) IncrementRetryAttempts() {
	m.RetryAttempts++
}

// GetErrorDetail returns the failure info attached on the last retry, if any
func (m BaseMessage) GetErrorDetail() *ErrorDetail {
	return m.Error
}

// SetErrorDetail attaches failure info to the message
func (m *BaseMessage) SetErrorDetail(detail *ErrorDetail) {
	m.Error = detail
}
