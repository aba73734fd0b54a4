package httputil

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

var errTransient = errors.New("connection reset")

func TestRetryable(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}

	err := Retryable(errTransient)
	if !IsRetryable(err) {
		t.Error("IsRetryable should be true for a wrapped error")
	}
	if !errors.Is(err, errTransient) {
		t.Error("wrapped error should unwrap to its cause")
	}
	if err.Error() != errTransient.Error() {
		t.Errorf("Error() = %q, want %q", err.Error(), errTransient.Error())
	}
	if IsRetryable(errTransient) {
		t.Error("IsRetryable should be false for a plain error")
	}
}

func TestRetry(t *testing.T) {
	ctx := context.Background()
	permanent := errors.New("404")

	tests := []struct {
		name      string
		failures  int
		fail      error
		attempts  int
		wantCalls int
		wantErr   error
	}{
		{"success first try", 0, nil, 3, 1, nil},
		{"permanent error stops", 5, permanent, 3, 1, permanent},
		{"recovers after retry", 2, Retryable(errTransient), 3, 3, nil},
		{"gives up", 5, Retryable(errTransient), 3, 3, errTransient},
		{"zero attempts runs once", 5, Retryable(errTransient), 0, 1, errTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(ctx, tt.attempts, time.Millisecond, func() error {
				calls++
				if calls <= tt.failures {
					return tt.fail
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Retry() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRetryContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Retry(ctx, 3, time.Hour, func() error {
		return Retryable(errTransient)
	})
	if err != context.Canceled {
		t.Errorf("Retry() error = %v, want %v", err, context.Canceled)
	}
}

func TestRetryHonoursAfter(t *testing.T) {
	calls := 0
	start := time.Now()
	err := Retry(context.Background(), 2, time.Millisecond, func() error {
		calls++
		if calls == 1 {
			return RetryableAfter(errTransient, 20*time.Millisecond)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
		t.Errorf("Retry waited %s, want at least 20ms", elapsed)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		value string
		want  time.Duration
	}{
		{"", 0},
		{"30", 30 * time.Second},
		{"-5", 0},
		{"soon", 0},
		{now.Add(90 * time.Second).Format(http.TimeFormat), 90 * time.Second},
		{now.Add(-time.Minute).Format(http.TimeFormat), 0},
	}
	for _, tt := range tests {
		h := http.Header{}
		if tt.value != "" {
			h.Set("Retry-After", tt.value)
		}
		if got := RetryAfter(h, now); got != tt.want {
			t.Errorf("RetryAfter(%q) = %s, want %s", tt.value, got, tt.want)
		}
	}
}
