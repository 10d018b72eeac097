package store

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy bounds the retry decorator applied to Open and Execute.
type RetryPolicy struct {
	// MaxAttempts is the total number of attempts, including the first.
	MaxAttempts int

	// Delay is multiplied by the attempt number to get the wait before the next attempt.
	Delay time.Duration
}

// DefaultRetryPolicy returns three attempts with a 100ms linear step.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Delay: 100 * time.Millisecond}
}

// linearBackOff waits Delay * n before the n-th retry.
type linearBackOff struct {
	delay time.Duration
	n     int
}

// NextBackOff implements backoff.BackOff.
func (b *linearBackOff) NextBackOff() time.Duration {
	b.n++
	return b.delay * time.Duration(b.n)
}

// Reset implements backoff.BackOff.
func (b *linearBackOff) Reset() {
	b.n = 0
}

// retry runs fn until it succeeds, returns a permanent error, or the policy
// is exhausted. fn receives the 1-based attempt number.
// The returned error is always an *Error (or nil).
func retry(ctx context.Context, p RetryPolicy, l *zap.Logger, m *metrics, op string, fn func(attempt int) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(&linearBackOff{delay: p.Delay}, uint64(maxAttempts-1)),
		ctx,
	)

	var attempt int
	operation := func() error {
		attempt++
		m.attempts.WithLabelValues(op).Inc()

		err := fn(attempt)
		if err == nil {
			return nil
		}

		se := Classify(op, err)
		if !se.Retryable {
			return backoff.Permanent(se)
		}
		return se
	}

	notify := func(err error, wait time.Duration) {
		m.retries.WithLabelValues(op).Inc()
		l.Warn("Retrying storage operation",
			zap.String("op", op),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(operation, b, notify)
	if err == nil {
		return nil
	}

	se := Classify(op, err)
	m.failures.WithLabelValues(op, string(se.Kind)).Inc()
	l.Error("Storage operation failed",
		zap.String("op", op),
		zap.Int("attempts", attempt),
		zap.String("kind", string(se.Kind)),
		zap.Bool("retryable", se.Retryable),
		zap.Error(se),
	)
	return se
}
