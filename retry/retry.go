// CLAUDE:SUMMARY Declarative bounded retry with exponential backoff, per-attempt timeout, and transient-error classification.
// Package retry runs an operation a bounded number of times with backoff.
//
// A Policy names the operation and fixes its attempt count, per-attempt
// timeout and backoff. Errors wrapped with Permanent stop immediately.
package retry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Policy describes how an operation is retried.
type Policy struct {
	// Name identifies the operation in logs and errors.
	Name string
	// MaxAttempts is the total number of tries. Default: 3.
	MaxAttempts int
	// Timeout bounds each attempt. Zero means the parent context only.
	Timeout time.Duration
	// Backoff is the delay after the first failure; it doubles each time. Default: 500ms.
	Backoff time.Duration
	// MaxBackoff caps the delay. Default: 10s.
	MaxBackoff time.Duration
	// Retryable decides whether an error is worth another attempt.
	// Default: every error not marked Permanent.
	Retryable func(error) bool
	Logger    *slog.Logger
}

func (p *Policy) defaults() {
	if p.Name == "" {
		p.Name = "operation"
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 3
	}
	if p.Backoff <= 0 {
		p.Backoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 10 * time.Second
	}
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

// Do runs fn until it succeeds, returns a non-retryable error, runs out of
// attempts, or ctx is done. Each attempt receives its own context bounded by
// p.Timeout. The returned error wraps the last failure.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	p.defaults()
	delay := p.Backoff

	var last error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		last = runAttempt(ctx, p.Timeout, fn)
		if last == nil {
			return nil
		}
		if IsPermanent(last) {
			return last
		}
		if p.Retryable != nil && !p.Retryable(last) {
			return last
		}
		if ctx.Err() != nil {
			return fmt.Errorf("%s: %w", p.Name, ctx.Err())
		}
		if attempt == p.MaxAttempts {
			break
		}

		p.Logger.Warn("retry: attempt failed",
			"operation", p.Name, "attempt", attempt,
			"max_attempts", p.MaxAttempts, "backoff", delay, "error", last)

		if err := sleepCtx(ctx, delay); err != nil {
			return fmt.Errorf("%s: %w", p.Name, err)
		}
		delay *= 2
		if delay > p.MaxBackoff {
			delay = p.MaxBackoff
		}
	}
	return fmt.Errorf("%s: %d attempts failed: %w", p.Name, p.MaxAttempts, last)
}

func runAttempt(ctx context.Context, timeout time.Duration, fn func(ctx context.Context) error) error {
	if timeout <= 0 {
		return fn(ctx)
	}
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(actx)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
