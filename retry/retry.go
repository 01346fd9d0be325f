// Package retry provides exponential backoff retry logic with jitter.
//
// The same Policy is applied at two layers: around individual API calls
// (youtube package) and around whole pipeline steps (pipeline package).
package retry

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"
)

// Policy holds retry configuration.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int
	// InitialBackoff is the delay before the first retry.
	InitialBackoff time.Duration
	// MaxBackoff is the maximum delay between retries.
	MaxBackoff time.Duration
	// Multiplier is the exponential backoff multiplier.
	Multiplier float64
	// JitterFraction is the fraction of backoff used for jitter (0.0-1.0).
	JitterFraction float64
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    5,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.2, // +/- 20% jitter
	}
}

// Classifier reports whether an error is transient and worth retrying.
type Classifier func(error) bool

// Always is a classifier that retries every error except context
// cancellation and deadline expiry.
func Always(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

// Do executes fn under the policy, using the classifier to decide whether a
// failure is transient. A non-transient error propagates immediately.
// When all attempts fail the last error is wrapped in *ExhaustedError.
func Do(ctx context.Context, p Policy, classify Classifier, fn func(context.Context) error) error {
	if classify == nil {
		classify = Always
	}
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	var lastErr error
	backoff := p.InitialBackoff

	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if !classify(err) {
			// Fatal error, don't retry.
			return err
		}

		if attempt == p.MaxAttempts {
			break
		}

		sleep := backoff + jitter(backoff, p.JitterFraction)
		if sleep > p.MaxBackoff {
			sleep = p.MaxBackoff
		}

		select {
		case <-time.After(sleep):
		case <-ctx.Done():
			return ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * p.Multiplier)
		if backoff > p.MaxBackoff {
			backoff = p.MaxBackoff
		}
	}

	return &ExhaustedError{Attempts: p.MaxAttempts, Err: lastErr}
}

// jitter returns a random duration in range [-fraction*d, +fraction*d].
func jitter(d time.Duration, fraction float64) time.Duration {
	if fraction <= 0 {
		return 0
	}
	jitterRange := float64(d) * fraction
	jitterValue := (rand.Float64() - 0.5) * 2 * jitterRange
	return time.Duration(jitterValue)
}

// ExhaustedError wraps the last error after all attempts failed.
type ExhaustedError struct {
	Attempts int
	Err      error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
