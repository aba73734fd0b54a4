package httputil

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MaxDelay caps the wait between two attempts, including waits asked for
// by Retry-After.
const MaxDelay = time.Minute

// RetryableError marks Err as transient. After, when positive, is the
// least the caller should wait before the next attempt.
type RetryableError struct {
	Err   error
	After time.Duration
}

func (e *RetryableError) Error() string { return e.Err.Error() }
func (e *RetryableError) Unwrap() error { return e.Err }

// Retryable marks err as transient. It returns nil for nil.
func Retryable(err error) error {
	return RetryableAfter(err, 0)
}

// RetryableAfter marks err as transient with a minimum wait of after.
func RetryableAfter(err error, after time.Duration) error {
	if err == nil {
		return nil
	}
	return &RetryableError{Err: err, After: after}
}

// IsRetryable reports whether err is, or wraps, a RetryableError.
func IsRetryable(err error) bool {
	var r *RetryableError
	return errors.As(err, &r)
}

// Retry calls fn up to attempts times, at least once. Only errors marked
// with [Retryable] are retried. The wait starts at delay and doubles after
// every failure, never below the error's After and never above MaxDelay.
// Cancelling ctx while waiting returns ctx.Err().
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error) error {
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		var r *RetryableError
		if !errors.As(err, &r) || attempt >= attempts {
			return err
		}

		wait := min(max(delay, r.After), MaxDelay)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
}

// RetryAfter parses a Retry-After header given in seconds or as an HTTP
// date. It returns zero when the header is absent or malformed.
func RetryAfter(h http.Header, now time.Time) time.Duration {
	v := strings.TrimSpace(h.Get("Retry-After"))
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil && t.After(now) {
		return t.Sub(now)
	}
	return 0
}
