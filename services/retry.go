package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

// RetryPolicy controls how outbound HTTP calls are retried. Rate limits,
// server errors, and transport failures are retried with exponential
// backoff; any other client error fails immediately.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// DefaultRetryPolicy matches provider guidance: three attempts, backing off
// from one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Second}
}

// ShouldRetry reports whether a response status is transient.
func (p RetryPolicy) ShouldRetry(status int) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	return status >= 500
}

// Delay returns the pause before the given zero-based retry.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.BaseDelay * time.Duration(1<<attempt)
}

// Do invokes fn until it succeeds, fails permanently, or attempts run out.
// fn reports the HTTP status it saw; status 0 means the request never
// reached the server and is treated as retryable.
func (p RetryPolicy) Do(ctx context.Context, operation string, fn func() (int, error)) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		status, err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if status != 0 && !p.ShouldRetry(status) {
			return err
		}
		if attempt == attempts-1 {
			break
		}

		delay := p.Delay(attempt)
		slog.Warn("Transient failure, retrying",
			"operation", operation,
			"attempt", attempt+1,
			"status", status,
			"delay", delay.String(),
			"error", err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return fmt.Errorf("%s: retries exhausted: %w", operation, lastErr)
}
