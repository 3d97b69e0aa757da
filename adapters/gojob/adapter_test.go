package gojob

import (
	"testing"
	"time"

	"github.com/labforge/go-quotes/core"

	job "github.com/goliatone/go-job"
)

func TestRetryPolicyNormalizeAttempt(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, MaxDelay: time.Minute, DeadLetterOnMax: true}

	t.Run("caps delay and trims reason", func(t *testing.T) {
		out := policy.NormalizeAttempt(core.JobNackOptions{
			Delay:   5 * time.Minute,
			Requeue: true,
			Reason:  "  transient  ",
		}, 1)
		if out.Delay != time.Minute {
			t.Fatalf("expected capped delay, got %v", out.Delay)
		}
		if out.Reason != "transient" {
			t.Fatalf("expected trimmed reason, got %q", out.Reason)
		}
		if !out.Requeue || out.DeadLetter {
			t.Fatalf("expected requeue below attempt budget, got %+v", out)
		}
	})

	t.Run("dead letters past the attempt budget", func(t *testing.T) {
		out := policy.NormalizeAttempt(core.JobNackOptions{Requeue: true}, 3)
		if out.Requeue || !out.DeadLetter {
			t.Fatalf("expected dead letter at max attempts, got %+v", out)
		}
	})

	t.Run("never drops a delivery silently", func(t *testing.T) {
		out := RetryPolicy{}.NormalizeAttempt(core.JobNackOptions{}, 0)
		if !out.Requeue && !out.DeadLetter {
			t.Fatalf("nack must requeue or dead letter, got %+v", out)
		}
	})
}

func TestExecutionMessageRoundTrip(t *testing.T) {
	original := &core.JobExecutionMessage{
		JobID:          JobIDTrackingSync,
		Parameters:     map[string]any{"tracking_number": "TRK-1"},
		IdempotencyKey: "quotes.tracking.sync:TRK-1",
		DedupPolicy:    "drop",
	}

	mapped := ToExecutionMessage(original)
	if mapped.JobID != original.JobID || mapped.IdempotencyKey != original.IdempotencyKey {
		t.Fatalf("unexpected mapped message: %+v", mapped)
	}
	if mapped.DedupPolicy != job.DeduplicationPolicy("drop") {
		t.Fatalf("unexpected dedup policy: %q", mapped.DedupPolicy)
	}

	back := FromExecutionMessage(mapped)
	if back.JobID != original.JobID || back.Parameters["tracking_number"] != "TRK-1" {
		t.Fatalf("round trip lost fields: %+v", back)
	}

	if ToExecutionMessage(nil) != nil || FromExecutionMessage(nil) != nil {
		t.Fatalf("nil messages must map to nil")
	}
}
