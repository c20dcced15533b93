package leetcode

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// RetryConfig holds retry settings for judge API calls
type RetryConfig struct {
	MaxAttempts int           // total attempts, including the first
	BaseBackoff time.Duration // first delay; doubles each attempt
}

// DefaultRetryConfig returns the standard retry policy: 5 attempts,
// 2s base backoff with ±25% jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 5, BaseBackoff: 2 * time.Second}
}

// transientError marks an error as retryable
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// permanentError marks an error as not worth retrying
type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Transient wraps an error so the retry loop will retry it
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// Permanent wraps an error so the retry loop fails immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsTransient reports whether an error is marked retryable
func IsTransient(err error) bool {
	var te *transientError
	return errors.As(err, &te)
}

// IsPermanent reports whether an error is marked non-retryable
func IsPermanent(err error) bool {
	var pe *permanentError
	return errors.As(err, &pe)
}

// Unmark strips the transient/permanent wrapper, if any
func Unmark(err error) error {
	var te *transientError
	if errors.As(err, &te) {
		return te.err
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return pe.err
	}
	return err
}

// Do runs fn with exponential backoff on transient errors. Permanent
// errors and context cancellation return immediately; exhausting all
// attempts returns the last transient error. Each delay is jittered by
// ±25% so clients hitting the same rate limit spread out.
func Do(ctx context.Context, cfg RetryConfig, logger *zap.Logger, fn func(ctx context.Context) error) error {
	backoff := cfg.BaseBackoff
	var lastErr error

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		// The marker survives the return so callers can distinguish
		// permanent failures from retry exhaustion.
		if IsPermanent(err) {
			return err
		}
		lastErr = err

		if attempt == cfg.MaxAttempts {
			break
		}

		delay := jitter(backoff)
		logger.Warn("Judge API call failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("backoff", delay),
			zap.Error(Unmark(err)),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		backoff *= 2
	}
	return lastErr
}

// jitter spreads a duration uniformly across ±25%
func jitter(d time.Duration) time.Duration {
	f := float64(d)
	return time.Duration(f*0.75 + rand.Float64()*f*0.5)
}
