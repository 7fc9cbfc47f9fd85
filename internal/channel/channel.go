// Package channel provides named at-least-once message channels backed by
// SQLite. Producers append messages with a routing key; consumers claim due
// messages under a processing lease, retry failures with exponential backoff,
// and route exhausted messages to a dead-letter channel.
package channel

import (
	"strings"
	"time"
)

// DeadLetterSuffix is appended to a channel name when a message exhausts its
// retry budget.
const DeadLetterSuffix = "-dlt"

// Message is one routed entry on a named channel.
type Message struct {
	ID         int64
	Channel    string
	RoutingKey string
	Payload    []byte
	// Attempt counts prior failed deliveries; zero on first delivery.
	Attempt    int
	EnqueuedAt time.Time
}

// RetryPolicy bounds redelivery of failed messages. It is applied by the
// consumer wrapper, independent of handler logic.
type RetryPolicy struct {
	// MaxAttempts is the total number of deliveries before dead-lettering.
	MaxAttempts int
	// BaseDelay is the delay before the first redelivery.
	BaseDelay time.Duration
	// Multiplier scales the delay after each failed attempt.
	Multiplier int
	// MaxDelay caps the backoff.
	MaxDelay time.Duration
}

// DefaultRetryPolicy mirrors the notifier consumer contract: four attempts
// with 1s, 2s, 4s backoff capped at 10s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   time.Second,
		Multiplier:  2,
		MaxDelay:    10 * time.Second,
	}
}

func (p RetryPolicy) normalized() RetryPolicy {
	def := DefaultRetryPolicy()
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = def.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = def.BaseDelay
	}
	if p.Multiplier <= 1 {
		p.Multiplier = def.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = def.MaxDelay
	}
	return p
}

// Delay returns the backoff before redelivering a message that has failed
// attempt times.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	p = p.normalized()
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= time.Duration(p.Multiplier)
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}

// DeadLetterChannel returns the dead-letter channel name for a channel.
func DeadLetterChannel(name string) string {
	return strings.TrimSpace(name) + DeadLetterSuffix
}
