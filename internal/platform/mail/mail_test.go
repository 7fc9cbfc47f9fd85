package mail

import (
	"context"
	"strings"
	"testing"
)

func TestSendWithoutTransportLogsAndSucceeds(t *testing.T) {
	t.Parallel()

	var logged []string
	sender := New(Config{DefaultDomain: "dev.example"}, func(format string, args ...any) {
		logged = append(logged, format)
	})

	if err := sender.Send(context.Background(), "alice", "Subject", "Body"); err != nil {
		t.Fatalf("send without transport: %v", err)
	}
	if len(logged) != 1 {
		t.Fatalf("expected one logged skip, got %d", len(logged))
	}
}

func TestSendQualifiesBareRecipient(t *testing.T) {
	t.Parallel()

	var line string
	sender := New(Config{DefaultDomain: "dev.example"}, func(format string, args ...any) {
		if len(args) > 0 {
			if s, ok := args[0].(string); ok {
				line = s
			}
		}
	})

	if err := sender.Send(context.Background(), "alice", "Subject", "Body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if line != "alice@dev.example" {
		t.Fatalf("qualified address = %q, want %q", line, "alice@dev.example")
	}
}

func TestSendKeepsFullAddress(t *testing.T) {
	t.Parallel()

	var line string
	sender := New(Config{DefaultDomain: "dev.example"}, func(format string, args ...any) {
		if len(args) > 0 {
			if s, ok := args[0].(string); ok {
				line = s
			}
		}
	})

	if err := sender.Send(context.Background(), "alice@corp.example", "Subject", "Body"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if line != "alice@corp.example" {
		t.Fatalf("address = %q, want %q", line, "alice@corp.example")
	}
}

func TestSendRejectsEmptyRecipient(t *testing.T) {
	t.Parallel()

	sender := New(Config{}, func(string, ...any) {})
	err := sender.Send(context.Background(), "  ", "Subject", "Body")
	if err == nil || !strings.Contains(err.Error(), "recipient is required") {
		t.Fatalf("expected recipient error, got %v", err)
	}
}
