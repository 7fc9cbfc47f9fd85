package event

import (
	"context"
	"encoding/json"
	"log"
)

// ChannelWriter appends one message to a named channel.
type ChannelWriter interface {
	Publish(ctx context.Context, channelName, routingKey string, payload []byte) error
}

// Publisher translates workflow events into channel messages keyed by event
// kind. Sends are fire-and-forget: a channel failure is logged and never
// surfaced to the engine, so an already-persisted state change is never
// rolled back over a relay problem.
type Publisher struct {
	writer ChannelWriter
	logf   func(format string, args ...any)
}

// NewPublisher constructs an event publisher over a channel writer.
func NewPublisher(writer ChannelWriter, logf func(format string, args ...any)) *Publisher {
	if logf == nil {
		logf = log.Printf
	}
	return &Publisher{writer: writer, logf: logf}
}

// PublishTaskAssigned relays a task assignment.
func (p *Publisher) PublishTaskAssigned(ctx context.Context, evt TaskAssigned) {
	p.send(ctx, ChannelTaskRelay, KindAssigned, evt)
}

// PublishTaskCompleted relays a task completion.
func (p *Publisher) PublishTaskCompleted(ctx context.Context, evt TaskCompleted) {
	p.send(ctx, ChannelTaskRelay, KindCompleted, evt)
}

// PublishHotfixTaskAdded relays a hotfix addition.
func (p *Publisher) PublishHotfixTaskAdded(ctx context.Context, evt HotfixTaskAdded) {
	p.send(ctx, ChannelTaskRelay, KindHotfix, evt)
}

// PublishStaleTaskDetected relays a stale task finding.
func (p *Publisher) PublishStaleTaskDetected(ctx context.Context, evt StaleTaskDetected) {
	p.send(ctx, ChannelTaskRelay, KindStale, evt)
}

// PublishSystemError relays a system health failure.
func (p *Publisher) PublishSystemError(ctx context.Context, evt SystemError) {
	p.send(ctx, ChannelSystemEvents, KindError, evt)
}

func (p *Publisher) send(ctx context.Context, channelName string, kind Kind, evt any) {
	if p == nil || p.writer == nil {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		p.logf("encode %s event: %v", kind, err)
		return
	}
	if err := p.writer.Publish(ctx, channelName, string(kind), payload); err != nil {
		p.logf("publish %s event to %s: %v", kind, channelName, err)
		return
	}
	p.logf("published %s event to %s", kind, channelName)
}
