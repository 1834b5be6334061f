package worker

import (
	"context"
	"fmt"
	"log"
	"math"
	"math/rand"
	"time"

	"memoryreel-backend/internal/services"
)

const (
	maxAttempts    = 3
	retryBaseDelay = 2 * time.Second
	retryMaxDelay  = 30 * time.Second
)

// withRetry runs fn up to maxAttempts times. Only errors the provider layer
// classified as retryable (rate limits, transient gateways) consume retry
// budget; anything else returns immediately.
func withRetry(ctx context.Context, label string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !services.IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == maxAttempts {
			break
		}

		delay := retryBackoff(attempt)
		log.Printf("[Worker] %s attempt %d/%d failed (retryable): %v (retrying in %v)",
			label, attempt, maxAttempts, lastErr, delay)

		select {
		case <-ctx.Done():
			return fmt.Errorf("%s cancelled during backoff: %w", label, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", label, maxAttempts, lastErr)
}

func retryBackoff(attempt int) time.Duration {
	delay := float64(retryBaseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(retryMaxDelay) {
		delay = float64(retryMaxDelay)
	}
	// 0–25% jitter to avoid thundering herd
	jitter := delay * 0.25 * rand.Float64()
	return time.Duration(delay + jitter)
}
