// Package retry runs an operation a fixed number of times with a fixed pause.
package retry

import (
	"context"
	"errors"
	"time"
)

// Default values match what the receipts backend tolerates.
const (
	DefaultMaxAttempts = 3
	DefaultDelay       = 2 * time.Second
)

// Policy describes how many times to attempt and how long to wait between attempts.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
}

// Default returns the standard three attempts, two seconds apart.
func Default() Policy {
	return Policy{MaxAttempts: DefaultMaxAttempts, Delay: DefaultDelay}
}

// Permanent wraps an error that must not be retried.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

type permanentError struct{ err error }

func (p permanentError) Error() string { return p.err.Error() }
func (p permanentError) Unwrap() error { return p.err }

// Do calls fn until it succeeds or attempts run out, returning the last error.
// The only suspension point is the pause between attempts, which honours ctx.
func (p Policy) Do(ctx context.Context, fn func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(ctx)
		if err == nil {
			return nil
		}
		var perm permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt == attempts {
			break
		}
		if p.Delay > 0 {
			timer := time.NewTimer(p.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return errors.Join(err, ctx.Err())
			case <-timer.C:
			}
		} else if ctx.Err() != nil {
			return errors.Join(err, ctx.Err())
		}
	}
	return err
}
