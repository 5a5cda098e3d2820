// Package retry provides a bounded-retry policy: a fixed attempt cap with a
// fixed delay between attempts, surfacing a terminal error once the cap is
// reached. It deliberately replaces ad hoc unbounded retry counters.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrAttemptsExhausted wraps the last error once the attempt cap is reached.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// Policy describes how many times an operation is attempted and how long to
// wait between attempts.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts int
	// Interval is the delay between consecutive attempts.
	Interval time.Duration
}

// Do runs fn until it succeeds, the attempt cap is reached, or the context is
// canceled. The returned error is nil on success, the context error on
// cancellation, or ErrAttemptsExhausted wrapping the last failure.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}

		if i == attempts-1 {
			break
		}

		select {
		case <-time.After(p.Interval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}
