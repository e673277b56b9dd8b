// Package retry provides the backoff policy shared by the resolver and the
// transfer worker.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/handiism/gofile-downloader/internal/common"
)

// Policy describes how an operation is retried.
//
// A zero Policy runs the operation once. Delays grow as
// BaseDelay * 2^attempt and never exceed MaxDelay.
//
// Example:
//
//	p := retry.DefaultPolicy().WithAttempts(3)
//	err := p.Do(ctx, func(ctx context.Context, attempt int) error {
//	    return fetch(ctx)
//	})
type Policy struct {
	// Attempts is the total number of tries, including the first one.
	// Values below 1 are treated as 1.
	Attempts int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// MaxDelay caps every wait, jitter included.
	MaxDelay time.Duration

	// Jitter spreads each wait over 0.5x to 1.5x of its nominal value.
	Jitter bool

	// Retryable decides whether an error is worth another attempt.
	// Defaults to IsTransient.
	Retryable func(error) bool

	// OnRetry is called before each wait. Optional.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy returns five attempts starting at one second, capped at 30 seconds.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:  5,
		BaseDelay: time.Second,
		MaxDelay:  30 * time.Second,
		Jitter:    true,
	}
}

// WithAttempts returns a copy of p that makes n attempts in total.
func (p Policy) WithAttempts(n int) Policy {
	p.Attempts = n
	return p
}

// WithRetries returns a copy of p that retries n times after the first attempt.
func (p Policy) WithRetries(n int) Policy {
	if n < 0 {
		n = 0
	}
	return p.WithAttempts(n + 1)
}

// IsTransient reports whether err is a network failure that may succeed on
// a later attempt.
func IsTransient(err error) bool {
	return errors.Is(err, common.ErrNetwork)
}

// Delay returns the wait that follows the given zero-based attempt.
func (p Policy) Delay(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt > 30 {
		attempt = 30
	}
	d := p.BaseDelay * time.Duration(1<<uint(attempt))
	if p.Jitter {
		d = time.Duration(float64(d) * (0.5 + rand.Float64()))
	}
	if p.MaxDelay > 0 && (d > p.MaxDelay || d < 0) {
		d = p.MaxDelay
	}
	return d
}

// Do runs fn until it succeeds, returns a non-retryable error, or the
// attempts run out. The last error is returned unchanged. If ctx is done
// while waiting, ctx.Err() is returned.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.Attempts
	if attempts < 1 {
		attempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = IsTransient
	}

	var err error
	for attempt := 0; attempt < attempts; attempt++ {
		if err = fn(ctx, attempt); err == nil {
			return nil
		}
		if attempt == attempts-1 || !retryable(err) || ctx.Err() != nil {
			return err
		}

		delay := p.Delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, err, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return err
}
