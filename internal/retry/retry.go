// Package retry wraps a single asynchronous unit of work with bounded
// exponential backoff. It knows nothing about tool loops or providers; only
// one transport attempt is ever retried, never a whole conversational turn.
package retry

import (
	"context"
	"errors"
	"time"
)

// Policy configures backoff behavior for Do.
type Policy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultPolicy matches the transport defaults used by the provider clients.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:  3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     8 * time.Second,
	}
}

// PermanentError marks a failure that will not improve with retries (for
// example a 4xx response). Do returns the wrapped error immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string { return e.Err.Error() }

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err so Do surfaces it without further attempts.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

// Do runs fn up to p.MaxAttempts times with exponential backoff between
// failures. Cancellation is observed both mid-attempt and mid-backoff: a
// cancelled context aborts immediately with the context's error rather than
// retrying. Any other error exhausting MaxAttempts is returned unchanged so
// the caller can classify it.
func Do[T any](ctx context.Context, p Policy, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}

	delay := p.InitialDelay
	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		if isCancellation(err) {
			// Cancellation always wins over the attempt's own failure.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return zero, ctxErr
			}
			return zero, err
		}
		var permanent *PermanentError
		if errors.As(err, &permanent) {
			return zero, permanent.Err
		}
		lastErr = err

		if attempt == p.MaxAttempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(delay):
		}

		delay *= 2
		if p.MaxDelay > 0 && delay > p.MaxDelay {
			delay = p.MaxDelay
		}
	}
	return zero, lastErr
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
