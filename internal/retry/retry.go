// Package retry wraps pipeline steps with bounded retries and exponential
// backoff. Retryability is decided from the typed error kind, never by
// sniffing message strings.
package retry

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/hazyhaar/scrollshot/internal/caperr"
)

// Policy bounds the retry behaviour of a single step.
type Policy struct {
	// MaxAttempts is the total number of tries, first call included.
	// Values below 1 behave as 1.
	MaxAttempts int

	// BaseDelay is the wait before the first retry.
	BaseDelay time.Duration

	// Multiplier grows the delay per attempt:
	// delay = BaseDelay × Multiplier^(attempt−1). Values below 1 behave
	// as 1 (constant delay).
	Multiplier float64

	Logger *slog.Logger
}

// Default is the pipeline-wide policy: three attempts, 250ms base, doubling.
var Default = Policy{MaxAttempts: 3, BaseDelay: 250 * time.Millisecond, Multiplier: 2}

// Do runs op until it succeeds, the error is terminal, attempts are
// exhausted, or the context is cancelled. The returned error is always
// classified (*caperr.Error) on failure.
func Do[T any](ctx context.Context, p Policy, step string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 1
	}

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt-2)))
			select {
			case <-ctx.Done():
				return zero, caperr.Classify(lastErr)
			case <-time.After(delay):
			}
		}

		v, err := op(ctx)
		if err == nil {
			return v, nil
		}
		lastErr = err

		ce := caperr.Classify(err)
		if !ce.Kind.Retryable() {
			return zero, ce
		}
		if ctx.Err() != nil {
			return zero, ce
		}

		if p.Logger != nil && attempt < p.MaxAttempts {
			p.Logger.WarnContext(ctx, "retry: step failed, retrying",
				"step", step,
				"attempt", attempt,
				"max_attempts", p.MaxAttempts,
				"kind", ce.Kind.String(),
				"error", err)
		}
	}
	return zero, caperr.Classify(lastErr)
}
