package worker

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"memoryreel-backend/internal/services"
)

func TestWithRetryNonRetryableFailsFast(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test op", func() error {
		calls++
		return fmt.Errorf("bad input")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt for non-retryable error, got %d", calls)
	}
}

func TestWithRetrySucceedsFirstTry(t *testing.T) {
	calls := 0
	err := withRetry(context.Background(), "test op", func() error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 1 {
		t.Errorf("expected 1 attempt, got %d", calls)
	}
}

func TestWithRetryCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	err := withRetry(ctx, "test op", func() error {
		calls++
		cancel()
		return services.NewHTTPProviderError("fal", "submit", 429, "rate limited")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context cancellation in error chain, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected backoff to observe cancellation after 1 attempt, got %d", calls)
	}
}

func TestWithRetryRetriesRetryable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping backoff sleep in short mode")
	}

	calls := 0
	err := withRetry(context.Background(), "test op", func() error {
		calls++
		if calls < 2 {
			return services.NewHTTPProviderError("fal", "submit", 503, "upstream hiccup")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("expected success on attempt 2, got %d attempts", calls)
	}
}

func TestRetryBackoffCapped(t *testing.T) {
	for attempt := 1; attempt <= 10; attempt++ {
		d := retryBackoff(attempt)
		if d < retryBaseDelay {
			t.Errorf("attempt %d: backoff %v below base delay", attempt, d)
		}
		// cap plus maximum 25% jitter
		if float64(d) > float64(retryMaxDelay)*1.25 {
			t.Errorf("attempt %d: backoff %v exceeds cap", attempt, d)
		}
	}
}
