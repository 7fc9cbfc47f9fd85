package event

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

type fakeWriter struct {
	channels []string
	keys     []string
	payloads [][]byte
	err      error
}

func (w *fakeWriter) Publish(ctx context.Context, channelName, routingKey string, payload []byte) error {
	if w.err != nil {
		return w.err
	}
	w.channels = append(w.channels, channelName)
	w.keys = append(w.keys, routingKey)
	w.payloads = append(w.payloads, payload)
	return nil
}

func TestPublisherRoutesByKind(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	publisher := NewPublisher(writer, func(string, ...any) {})
	ctx := context.Background()

	publisher.PublishTaskAssigned(ctx, TaskAssigned{TaskID: "t1", DeveloperID: "alice", ReleaseID: "r1"})
	publisher.PublishTaskCompleted(ctx, TaskCompleted{TaskID: "t1", DeveloperID: "alice", ReleaseID: "r1"})
	publisher.PublishHotfixTaskAdded(ctx, HotfixTaskAdded{TaskID: "t2", DeveloperID: "bob", ReleaseID: "r1", TaskTitle: "Fix login"})
	publisher.PublishStaleTaskDetected(ctx, StaleTaskDetected{TaskID: "t3", DeveloperID: "carol", Duration: "49h"})
	publisher.PublishSystemError(ctx, SystemError{ErrorCode: "STORE_DOWN", Message: "ping failed"})

	wantKeys := []string{"assigned", "completed", "hotfix", "stale", "error"}
	if len(writer.keys) != len(wantKeys) {
		t.Fatalf("published %d messages, want %d", len(writer.keys), len(wantKeys))
	}
	for i, want := range wantKeys {
		if writer.keys[i] != want {
			t.Fatalf("key[%d] = %q, want %q", i, writer.keys[i], want)
		}
	}
	for i, ch := range writer.channels[:4] {
		if ch != ChannelTaskRelay {
			t.Fatalf("channel[%d] = %q, want %q", i, ch, ChannelTaskRelay)
		}
	}
	if writer.channels[4] != ChannelSystemEvents {
		t.Fatalf("system error channel = %q, want %q", writer.channels[4], ChannelSystemEvents)
	}
}

func TestPublisherPayloadShape(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	publisher := NewPublisher(writer, func(string, ...any) {})

	publisher.PublishHotfixTaskAdded(context.Background(), HotfixTaskAdded{
		TaskID:         "t2",
		DeveloperID:    "bob",
		DeveloperEmail: "bob@dev.example",
		ReleaseID:      "r1",
		TaskTitle:      "Fix login",
	})

	var decoded map[string]any
	if err := json.Unmarshal(writer.payloads[0], &decoded); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	for _, field := range []string{"taskId", "developerId", "developerEmail", "releaseId", "taskTitle"} {
		if _, ok := decoded[field]; !ok {
			t.Fatalf("payload missing field %q: %s", field, writer.payloads[0])
		}
	}
}

func TestPublisherOmitsEmptyDeveloperEmail(t *testing.T) {
	t.Parallel()

	writer := &fakeWriter{}
	publisher := NewPublisher(writer, func(string, ...any) {})

	publisher.PublishTaskAssigned(context.Background(), TaskAssigned{TaskID: "t1", DeveloperID: "alice", ReleaseID: "r1"})

	if strings.Contains(string(writer.payloads[0]), "developerEmail") {
		t.Fatalf("empty developerEmail serialized: %s", writer.payloads[0])
	}
}

func TestPublisherSwallowsChannelFailures(t *testing.T) {
	t.Parallel()

	var logged int
	writer := &fakeWriter{err: errors.New("channel unavailable")}
	publisher := NewPublisher(writer, func(string, ...any) { logged++ })

	publisher.PublishTaskAssigned(context.Background(), TaskAssigned{TaskID: "t1", DeveloperID: "alice", ReleaseID: "r1"})

	if logged != 1 {
		t.Fatalf("logged failures = %d, want 1", logged)
	}
}
