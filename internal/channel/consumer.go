package channel

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

const defaultPollInterval = 2 * time.Second

const claimBatchSize = 32

// Handler processes one delivered message. A non-nil error requeues the
// message per the consumer's retry policy; exhausting the policy routes the
// message to the dead-letter channel.
type Handler func(ctx context.Context, msg Message) error

// Consumer polls one channel and dispatches claimed messages to a handler
// under a retry policy. Delivery is at-least-once: handlers must tolerate
// redelivery.
type Consumer struct {
	store        *Store
	channel      string
	handler      Handler
	policy       RetryPolicy
	pollInterval time.Duration
	clock        func() time.Time
	logf         func(format string, args ...any)
}

// NewConsumer constructs a consumer for one named channel.
func NewConsumer(store *Store, channelName string, handler Handler, policy RetryPolicy, pollInterval time.Duration, logf func(format string, args ...any)) *Consumer {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Consumer{
		store:        store,
		channel:      strings.TrimSpace(channelName),
		handler:      handler,
		policy:       policy.normalized(),
		pollInterval: pollInterval,
		clock:        func() time.Time { return time.Now().UTC() },
		logf:         logf,
	}
}

// Run polls the channel until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	if c == nil || c.store == nil {
		return fmt.Errorf("consumer store is required")
	}
	if c.channel == "" {
		return fmt.Errorf("consumer channel is required")
	}
	if c.handler == nil {
		return fmt.Errorf("consumer handler is required")
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		if _, err := c.ProcessOnce(ctx, c.clock()); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logf("channel %s: process batch: %v", c.channel, err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims and dispatches one batch of due messages. It returns
// the number of messages handled in the batch.
func (c *Consumer) ProcessOnce(ctx context.Context, now time.Time) (int, error) {
	if c == nil || c.store == nil || c.handler == nil {
		return 0, fmt.Errorf("consumer is not configured")
	}
	if now.IsZero() {
		now = time.Now().UTC()
	}

	claimed, err := c.store.ClaimDue(ctx, c.channel, now, claimBatchSize)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, msg := range claimed {
		handleErr := c.handler(ctx, msg)
		if handleErr == nil {
			if err := c.store.Complete(ctx, msg); err != nil {
				return processed, err
			}
			processed++
			continue
		}

		attempt := msg.Attempt + 1
		if attempt >= c.policy.MaxAttempts {
			c.logf("channel %s: message %d dead-lettered after %d attempts: %v", c.channel, msg.ID, attempt, handleErr)
			if err := c.store.MarkDead(ctx, msg, now, handleErr.Error()); err != nil {
				return processed, err
			}
		} else {
			nextAttempt := now.Add(c.policy.Delay(attempt))
			if err := c.store.MarkRetry(ctx, msg, now, nextAttempt, handleErr.Error()); err != nil {
				return processed, err
			}
		}
		processed++
	}

	return processed, nil
}
