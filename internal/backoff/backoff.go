// Package backoff provides count-based delay policies for polling hosts.
package backoff

import (
	"math"
	"math/rand"
	"time"
)

// Policy computes the delay before the next attempt
type Policy interface {
	// NextDelay calculates the delay for the given attempt, starting at 0
	NextDelay(attempt int) time.Duration
}

// Exponential implements exponential backoff with optional jitter
type Exponential struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Jitter          bool
}

// NewExponential creates an exponential backoff policy with jitter enabled
func NewExponential(initial, max time.Duration, multiplier float64) *Exponential {
	return &Exponential{
		InitialInterval: initial,
		MaxInterval:     max,
		Multiplier:      multiplier,
		Jitter:          true,
	}
}

// NextDelay implements Policy
func (e *Exponential) NextDelay(attempt int) time.Duration {
	delay := float64(e.InitialInterval) * math.Pow(e.Multiplier, float64(attempt))

	if delay > float64(e.MaxInterval) {
		delay = float64(e.MaxInterval)
	}

	// ±15% jitter
	if e.Jitter {
		jitter := rand.Float64() * 0.3 * delay
		delay = delay + jitter - (0.15 * delay)
	}

	return time.Duration(delay)
}

// Fixed implements a constant delay policy
type Fixed struct {
	Delay time.Duration
}

// NextDelay implements Policy
func (f Fixed) NextDelay(attempt int) time.Duration {
	return f.Delay
}
