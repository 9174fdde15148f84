// Package retry runs a remote call with bounded exponential backoff.
//
// Classification (is this failure worth another attempt?) is supplied by the
// caller through Policy.IsTransient, so the loop itself knows nothing about
// HTTP or any particular upstream.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultBaseDelay   = time.Second
)

var ErrRetriesExhausted = errors.New("retries exhausted")

// ExhaustedError is returned after every attempt failed transiently.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("retries exhausted after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrRetriesExhausted, e.Last}
}

type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	IsTransient func(error) bool
	// Sleep waits for d or until ctx is done. Nil means a timer-based wait.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry is called before each backoff wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

func (p Policy) withDefaults() Policy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.IsTransient == nil {
		p.IsTransient = func(error) bool { return false }
	}
	if p.Sleep == nil {
		p.Sleep = sleepContext
	}
	return p
}

// Delay is the wait before attempt n (1-indexed). There is no wait before the first attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt < 2 {
		return 0
	}
	base := p.BaseDelay
	if base <= 0 {
		base = DefaultBaseDelay
	}
	return base << uint(attempt-2)
}

// Do calls fn until it succeeds, fails non-transiently, or MaxAttempts is reached.
func Do[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error)) (T, error) {
	p = p.withDefaults()

	var zero T
	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := p.Delay(attempt)
			if p.OnRetry != nil {
				p.OnRetry(attempt, delay, last)
			}
			if err := p.Sleep(ctx, delay); err != nil {
				return zero, err
			}
		}

		v, err := fn(ctx, attempt)
		if err == nil {
			return v, nil
		}
		if !p.IsTransient(err) {
			return zero, err
		}
		last = err
	}

	return zero, &ExhaustedError{Attempts: p.MaxAttempts, Last: last}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
