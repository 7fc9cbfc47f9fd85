package channel

import (
	"testing"
	"time"
)

func TestRetryPolicyDelayProgression(t *testing.T) {
	t.Parallel()

	policy := DefaultRetryPolicy()
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 4 * time.Second},
		{4, 8 * time.Second},
		{5, 10 * time.Second},
		{9, 10 * time.Second},
	}
	for _, tc := range cases {
		if got := policy.Delay(tc.attempt); got != tc.want {
			t.Fatalf("delay(%d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestRetryPolicyNormalizesZeroValues(t *testing.T) {
	t.Parallel()

	policy := RetryPolicy{}.normalized()
	def := DefaultRetryPolicy()
	if policy != def {
		t.Fatalf("normalized zero policy = %+v, want %+v", policy, def)
	}
}

func TestDeadLetterChannelName(t *testing.T) {
	t.Parallel()

	if got := DeadLetterChannel("task-relay"); got != "task-relay-dlt" {
		t.Fatalf("dead-letter channel = %q, want %q", got, "task-relay-dlt")
	}
}
