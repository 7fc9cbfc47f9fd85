// Package stream fans live workflow notifications out to connected
// subscribers. New subscribers replay the most recent notifications so a UI
// joining mid-stream has context, and slow subscribers drop messages rather
// than stall the workflow.
package stream

import (
	"sync"
	"time"
)

// replayDepth is how many recent notifications a new subscriber receives.
const replayDepth = 10

// defaultBuffer is the per-subscriber channel capacity.
const defaultBuffer = 16

// Notification is one live workflow update.
type Notification struct {
	EventType string
	Payload   any
	Timestamp time.Time
}

// Broadcaster fans notifications out to subscribers. The zero value is not
// usable; construct with NewBroadcaster.
type Broadcaster struct {
	clock func() time.Time

	mu          sync.Mutex
	recent      []Notification
	subscribers map[int]chan Notification
	nextID      int
	closed      bool
}

// NewBroadcaster constructs a broadcaster. clock may be nil and defaults to
// time.Now.
func NewBroadcaster(clock func() time.Time) *Broadcaster {
	if clock == nil {
		clock = time.Now
	}
	return &Broadcaster{
		clock:       clock,
		subscribers: make(map[int]chan Notification),
	}
}

// Push records one notification and delivers it to every subscriber. A
// subscriber whose buffer is full misses the notification; delivery never
// blocks the caller.
func (b *Broadcaster) Push(eventType string, payload any) {
	if b == nil {
		return
	}
	notification := Notification{
		EventType: eventType,
		Payload:   payload,
		Timestamp: b.clock().UTC(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.recent = append(b.recent, notification)
	if len(b.recent) > replayDepth {
		b.recent = b.recent[len(b.recent)-replayDepth:]
	}

	for _, subscriber := range b.subscribers {
		select {
		case subscriber <- notification:
		default:
		}
	}
}

// Subscribe registers a new subscriber and replays the most recent
// notifications onto its channel. The returned cancel func unregisters the
// subscriber and closes its channel; it is safe to call more than once.
func (b *Broadcaster) Subscribe() (<-chan Notification, func()) {
	if b == nil {
		closed := make(chan Notification)
		close(closed)
		return closed, func() {}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	buffer := defaultBuffer
	if buffer < replayDepth {
		buffer = replayDepth
	}
	subscriber := make(chan Notification, buffer)
	for _, notification := range b.recent {
		subscriber <- notification
	}
	if b.closed {
		close(subscriber)
		return subscriber, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subscribers[id] = subscriber

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subscribers[id]; ok {
				delete(b.subscribers, id)
				close(subscriber)
			}
		})
	}
	return subscriber, cancel
}

// Close unregisters every subscriber and closes their channels. Pushes after
// Close are dropped.
func (b *Broadcaster) Close() {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, subscriber := range b.subscribers {
		delete(b.subscribers, id)
		close(subscriber)
	}
}
