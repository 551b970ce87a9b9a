package contracts

import (
	"errors"
	"fmt"
	"time"
)

// ErrorDetail carries structured failure info attached to a message when it
// is republished for retry.
type ErrorDetail struct {
	Kind       string    `json:"kind"`
	Message    string    `json:"message"`
	OccurredAt time.Time `json:"occurredAt"`
}

// NewErrorDetail creates an ErrorDetail from an error
func NewErrorDetail(err error) *ErrorDetail {
	return &ErrorDetail{
		Kind:       fmt.Sprintf("%T", err),
		Message:    err.Error(),
		OccurredAt: time.Now().UTC(),
	}
}

// NonRetryableError wraps an error to indicate it must not be retried.
// Messages failing with it go straight to the dead-letter queue.
type NonRetryableError struct {
	Err error
}

// MarkNonRetryable wraps err as non-retryable
func MarkNonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &NonRetryableError{Err: err}
}

// Error implements error
func (e *NonRetryableError) Error() string {
	return e.Err.Error()
}

// IsRetryable indicates the error must not be retried
func (e *NonRetryableError) IsRetryable() bool {
	return false
}

// Unwrap returns the wrapped error
func (e *NonRetryableError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether a handler error may be retried. Errors
// implementing IsRetryable() bool anywhere in their chain decide for
// themselves; unknown errors default to retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	type retryable interface {
		IsRetryable() bool
	}

	for e := err; e != nil; e = errors.Unwrap(e) {
		if r, ok := e.(retryable); ok {
			return r.IsRetryable()
		}
	}

	return true
}
