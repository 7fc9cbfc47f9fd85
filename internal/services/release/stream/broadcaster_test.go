package stream

import (
	"fmt"
	"testing"
	"time"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func drain(ch <-chan Notification) []Notification {
	var out []Notification
	for {
		select {
		case notification, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, notification)
		default:
			return out
		}
	}
}

func TestPushDeliversToSubscribers(t *testing.T) {
	t.Parallel()

	broadcaster := NewBroadcaster(fixedClock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	first, cancelFirst := broadcaster.Subscribe()
	defer cancelFirst()
	second, cancelSecond := broadcaster.Subscribe()
	defer cancelSecond()

	broadcaster.Push("Task Started", "Task Design started by alice")

	for name, ch := range map[string]<-chan Notification{"first": first, "second": second} {
		got := drain(ch)
		if len(got) != 1 {
			t.Fatalf("%s subscriber received %d notifications, want 1", name, len(got))
		}
		if got[0].EventType != "Task Started" {
			t.Fatalf("%s event type = %q, want %q", name, got[0].EventType, "Task Started")
		}
	}
}

func TestSubscribeReplaysRecent(t *testing.T) {
	t.Parallel()

	broadcaster := NewBroadcaster(nil)
	for i := 0; i < 15; i++ {
		broadcaster.Push("Task Completed", fmt.Sprintf("task %d", i))
	}

	ch, cancel := broadcaster.Subscribe()
	defer cancel()

	got := drain(ch)
	if len(got) != replayDepth {
		t.Fatalf("replayed %d notifications, want %d", len(got), replayDepth)
	}
	if got[0].Payload != "task 5" {
		t.Fatalf("oldest replayed = %v, want task 5", got[0].Payload)
	}
	if got[len(got)-1].Payload != "task 14" {
		t.Fatalf("newest replayed = %v, want task 14", got[len(got)-1].Payload)
	}
}

func TestSlowSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	broadcaster := NewBroadcaster(nil)
	ch, cancel := broadcaster.Subscribe()
	defer cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < defaultBuffer*4; i++ {
			broadcaster.Push("Task Started", i)
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("push blocked on a slow subscriber")
	}

	got := drain(ch)
	if len(got) != defaultBuffer {
		t.Fatalf("slow subscriber received %d notifications, want buffer size %d", len(got), defaultBuffer)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	t.Parallel()

	broadcaster := NewBroadcaster(nil)
	ch, cancel := broadcaster.Subscribe()

	broadcaster.Push("Task Started", "one")
	cancel()
	cancel()
	broadcaster.Push("Task Started", "two")

	var received []Notification
	for notification := range ch {
		received = append(received, notification)
	}
	if len(received) != 1 {
		t.Fatalf("received %d notifications after cancel, want 1", len(received))
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	t.Parallel()

	broadcaster := NewBroadcaster(nil)
	ch, cancel := broadcaster.Subscribe()
	defer cancel()

	broadcaster.Close()
	broadcaster.Push("Task Started", "dropped")

	if _, ok := <-ch; ok {
		t.Fatal("subscriber channel not closed after Close")
	}

	late, lateCancel := broadcaster.Subscribe()
	defer lateCancel()
	if _, ok := <-late; ok {
		t.Fatal("late subscriber channel not closed after Close")
	}
}
