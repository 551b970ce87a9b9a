package contracts

import (
	"time"
)

// Message is the base interface for all messages processed by the engine
type Message interface {
	GetID() string
	GetTimestamp() time.Time
	GetType() string
	GetReplyTo() string
	SetReplyTo(replyTo string)
	GetReplyID() string
	SetReplyID(replyID string)
	GetRetryAttempts() int
	IncrementRetryAttempts()
	Stamp(messageType string)
	GetErrorDetail() *ErrorDetail
	SetErrorDetail(detail *ErrorDetail)
}
