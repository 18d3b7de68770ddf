// Package retry provides the bounded retry policy used by the generation stages.
package retry

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thebtf/ideaforge/internal/apperr"
)

// BackoffFunc returns the wait before the attempt following attempt (1-based).
type BackoffFunc func(attempt int) time.Duration

// Exponential returns base * 2^(attempt-1), capped at max when max > 0.
func Exponential(base, max time.Duration) BackoffFunc {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if max > 0 && d >= max {
				return max
			}
		}
		if max > 0 && d > max {
			return max
		}
		return d
	}
}

// NoWait is a backoff that never waits.
func NoWait(int) time.Duration { return 0 }

// Policy bounds how often an operation is attempted and how long to wait between attempts.
type Policy struct {
	Backoff BackoffFunc
	// Retryable decides whether a failed attempt may be repeated.
	// Nil means transient service errors and schema validation errors are retried.
	Retryable   func(error) bool
	Name        string
	MaxAttempts int
}

// DefaultRetryable retries transient service failures and rejected replies.
func DefaultRetryable(err error) bool {
	return apperr.IsTransient(err) || apperr.IsSchema(err)
}

// Result is the outcome of running an operation under a Policy.
type Result[T any] struct {
	Value    T
	Err      error
	Attempts int
}

// OK reports whether the operation eventually succeeded.
func (r Result[T]) OK() bool { return r.Err == nil }

// Do runs op until it succeeds, returns a non-retryable error, the attempt budget is
// exhausted or ctx is cancelled. The last error is kept in the Result.
func Do[T any](ctx context.Context, p Policy, op func(ctx context.Context, attempt int) (T, error)) Result[T] {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	retryable := p.Retryable
	if retryable == nil {
		retryable = DefaultRetryable
	}
	backoff := p.Backoff
	if backoff == nil {
		backoff = NoWait
	}

	var res Result[T]
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Err = err
			return res
		}

		res.Attempts = attempt
		res.Value, res.Err = op(ctx, attempt)
		if res.Err == nil {
			return res
		}
		if !retryable(res.Err) || attempt == maxAttempts {
			return res
		}

		wait := backoff(attempt)
		log.Warn().
			Err(res.Err).
			Str("op", p.Name).
			Int("attempt", attempt).
			Int("max_attempts", maxAttempts).
			Dur("backoff", wait).
			Msg("Attempt failed, retrying")

		if wait <= 0 {
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			res.Err = ctx.Err()
			return res
		case <-timer.C:
		}
	}
	return res
}
