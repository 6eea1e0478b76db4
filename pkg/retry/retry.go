// Package retry runs operations with exponential backoff and jitter.
// Used for startup connections and transient storage failures.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MARKERS
// ══════════════════════════════════════════════════════════════════════════════

type marker int

const (
	markRetryable marker = iota + 1
	markPermanent
)

type markedError struct {
	err  error
	mark marker
}

func (e *markedError) Error() string { return e.err.Error() }
func (e *markedError) Unwrap() error { return e.err }

func markOf(err error) marker {
	var m *markedError
	if errors.As(err, &m) {
		return m.mark
	}
	return 0
}

// Retryable wraps err so that the default policy retries it.
func Retryable(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, mark: markRetryable}
}

// Permanent wraps err so that no further attempt is made, whatever RetryIf says.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &markedError{err: err, mark: markPermanent}
}

// IsRetryable reports an error wrapped by Retryable.
func IsRetryable(err error) bool { return markOf(err) == markRetryable }

// IsPermanent reports an error wrapped by Permanent.
func IsPermanent(err error) bool { return markOf(err) == markPermanent }

// strip removes the outermost marker so callers see their own error.
func strip(err error) error {
	var m *markedError
	if errors.As(err, &m) {
		return m.err
	}
	return err
}

// ══════════════════════════════════════════════════════════════════════════════
// POLICY
// ══════════════════════════════════════════════════════════════════════════════

type policy struct {
	attempts   int
	initial    time.Duration
	ceiling    time.Duration
	multiplier float64
	jitter     float64
	retryIf    func(error) bool
	onRetry    func(attempt int, err error, delay time.Duration)
}

// Option adjusts a Retrier. Out of range values are ignored.
type Option func(*policy)

// WithMaxAttempts counts the first attempt.
func WithMaxAttempts(n int) Option {
	return func(p *policy) {
		if n > 0 {
			p.attempts = n
		}
	}
}

// WithInitialDelay sets the wait before the first retry.
func WithInitialDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.initial = d
		}
	}
}

// WithMaxDelay caps any single wait.
func WithMaxDelay(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.ceiling = d
		}
	}
}

// WithMultiplier sets the backoff growth factor, at least 1.
func WithMultiplier(m float64) Option {
	return func(p *policy) {
		if m >= 1 {
			p.multiplier = m
		}
	}
}

// WithJitter randomizes each wait by up to ±j of itself, 0 ≤ j ≤ 1.
func WithJitter(j float64) Option {
	return func(p *policy) {
		if j >= 0 && j <= 1 {
			p.jitter = j
		}
	}
}

// WithRetryIf replaces the default rule, which retries only Retryable errors.
func WithRetryIf(fn func(error) bool) Option {
	return func(p *policy) { p.retryIf = fn }
}

// WithOnRetry is called before each wait.
func WithOnRetry(fn func(attempt int, err error, delay time.Duration)) Option {
	return func(p *policy) { p.onRetry = fn }
}

// ══════════════════════════════════════════════════════════════════════════════
// RETRIER
// ══════════════════════════════════════════════════════════════════════════════

// Retrier is immutable and safe for concurrent use.
type Retrier struct {
	p policy
}

// New returns a Retrier: 3 attempts, 100ms doubling up to 30s, 10% jitter.
func New(opts ...Option) *Retrier {
	p := policy{
		attempts:   3,
		initial:    100 * time.Millisecond,
		ceiling:    30 * time.Second,
		multiplier: 2,
		jitter:     0.1,
		retryIf:    IsRetryable,
	}
	for _, opt := range opts {
		opt(&p)
	}
	if p.retryIf == nil {
		p.retryIf = IsRetryable
	}
	return &Retrier{p: p}
}

// Do calls op until it succeeds, returns an error the policy does not retry,
// runs out of attempts or ctx ends. The returned error has its marker
// removed.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = op(ctx); err == nil {
			return nil
		}
		if IsPermanent(err) || !r.p.retryIf(err) || attempt >= r.p.attempts {
			return strip(err)
		}

		wait := r.delay(attempt)
		if r.p.onRetry != nil {
			r.p.onRetry(attempt, err, wait)
		}
		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			return strip(err)
		case <-t.C:
		}
	}
}

// delay is the wait after the given failed attempt.
func (r *Retrier) delay(attempt int) time.Duration {
	d := float64(r.p.initial) * math.Pow(r.p.multiplier, float64(attempt-1))
	d = math.Min(d, float64(r.p.ceiling))
	if r.p.jitter > 0 {
		d *= 1 + r.p.jitter*(2*rand.Float64()-1)
	}
	return time.Duration(max(d, 0))
}

// Do runs op under a one-off Retrier.
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// DoWithData is Do for operations that produce a value.
func DoWithData[T any](ctx context.Context, op func(ctx context.Context) (T, error), opts ...Option) (T, error) {
	var out T
	err := New(opts...).Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err == nil {
			out = v
		}
		return err
	})
	return out, err
}

// ─────────────────────────────────────────────────────────────────────────────
// Presets
// ─────────────────────────────────────────────────────────────────────────────

// StartupRetrier waits for a database or cache that is still starting.
// Every error is retried.
func StartupRetrier(onRetry func(attempt int, err error, delay time.Duration)) *Retrier {
	return New(
		WithMaxAttempts(6),
		WithInitialDelay(500*time.Millisecond),
		WithMaxDelay(8*time.Second),
		WithJitter(0.2),
		WithRetryIf(func(error) bool { return true }),
		WithOnRetry(onRetry),
	)
}

// SnapshotRetrier retries a read transaction a couple of times on the
// errors transient reports.
func SnapshotRetrier(transient func(error) bool) *Retrier {
	return New(
		WithMaxAttempts(3),
		WithInitialDelay(50*time.Millisecond),
		WithMaxDelay(time.Second),
		WithJitter(0.05),
		WithRetryIf(transient),
	)
}
