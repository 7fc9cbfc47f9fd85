package app

import (
	"context"
	"testing"
)

func TestParseDirectory(t *testing.T) {
	t.Parallel()

	directory := ParseDirectory("alice=alice@dev.example, bob = bob@dev.example ,broken,=nobody@x")
	ctx := context.Background()

	if got := directory.EmailFor(ctx, "alice"); got != "alice@dev.example" {
		t.Fatalf("alice = %q, want alice@dev.example", got)
	}
	if got := directory.EmailFor(ctx, "bob"); got != "bob@dev.example" {
		t.Fatalf("bob = %q, want bob@dev.example", got)
	}
	if got := directory.EmailFor(ctx, "unknown"); got != "" {
		t.Fatalf("unknown = %q, want empty", got)
	}
}

func TestParseDirectoryEmptySpec(t *testing.T) {
	t.Parallel()

	directory := ParseDirectory("")
	if got := directory.EmailFor(context.Background(), "alice"); got != "" {
		t.Fatalf("alice = %q, want empty", got)
	}
}
