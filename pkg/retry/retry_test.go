package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

// customError implements temporary interface for testing
type customError struct {
	message   string
	temporary bool
}

func (e customError) Error() string   { return e.message }
func (e customError) Temporary() bool { return e.temporary }

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	if p.MaxAttempts != 3 {
		t.Errorf("expected MaxAttempts=3, got %d", p.MaxAttempts)
	}
	if p.BaseDelay != 100*time.Millisecond {
		t.Errorf("expected BaseDelay=100ms, got %v", p.BaseDelay)
	}
	if p.MaxDelay != 30*time.Second {
		t.Errorf("expected MaxDelay=30s, got %v", p.MaxDelay)
	}
	if p.Multiplier != 2.0 {
		t.Errorf("expected Multiplier=2.0, got %f", p.Multiplier)
	}
	if p.JitterStrategy != JitterNone {
		t.Error("expected no jitter by default")
	}
}

func TestShouldRetry(t *testing.T) {
	p := DefaultPolicy()

	tests := []struct {
		class    Class
		attempt  int
		expected bool
	}{
		{ClassTransient, 1, true},
		{ClassTransient, 2, true},
		{ClassTransient, 3, false},
		{ClassTransient, 4, false},
		{ClassRateLimited, 1, false},
		{ClassPermanent, 1, false},
		{ClassSuccess, 1, false},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s_attempt_%d", tt.class, tt.attempt), func(t *testing.T) {
			if got := p.ShouldRetry(tt.class, tt.attempt); got != tt.expected {
				t.Errorf("ShouldRetry(%s, %d) = %v, want %v", tt.class, tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestShouldRetry_RateLimitedIgnoresMaxAttempts(t *testing.T) {
	p := Policy{MaxAttempts: 100, BaseDelay: time.Millisecond}
	for attempt := 1; attempt < 100; attempt++ {
		if p.ShouldRetry(ClassRateLimited, attempt) {
			t.Fatalf("rate-limited outcome retried at attempt %d", attempt)
		}
	}
}

func TestDelayFor(t *testing.T) {
	p := Policy{
		BaseDelay:  100 * time.Millisecond,
		MaxDelay:   1 * time.Second,
		Multiplier: 2.0,
	}

	tests := []struct {
		attempt  int
		expected time.Duration
	}{
		{0, 100 * time.Millisecond}, // clamped to first retry
		{1, 100 * time.Millisecond}, // 100 * 2^0
		{2, 200 * time.Millisecond}, // 100 * 2^1
		{3, 400 * time.Millisecond}, // 100 * 2^2
		{4, 800 * time.Millisecond}, // 100 * 2^3
		{5, 1 * time.Second},        // 1600ms, capped at 1s
		{64, 1 * time.Second},       // no overflow
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			if got := p.DelayFor(tt.attempt); got != tt.expected {
				t.Errorf("DelayFor(%d) = %v, want %v", tt.attempt, got, tt.expected)
			}
		})
	}
}

func TestDelayFor_Pure(t *testing.T) {
	p := DefaultPolicy()
	first := []time.Duration{p.DelayFor(1), p.DelayFor(2), p.DelayFor(3)}

	// Interleave calls in a different order; results must not change.
	_ = p.DelayFor(7)
	second := []time.Duration{p.DelayFor(3), p.DelayFor(2), p.DelayFor(1)}

	if first[0] != second[2] || first[1] != second[1] || first[2] != second[0] {
		t.Errorf("DelayFor not pure: %v vs %v", first, second)
	}
}

func TestJittered(t *testing.T) {
	base := 100 * time.Millisecond

	t.Run("none", func(t *testing.T) {
		p := DefaultPolicy()
		if got := p.Jittered(base); got != base {
			t.Errorf("Jittered = %v, want %v", got, base)
		}
	})

	t.Run("equal stays within half..full", func(t *testing.T) {
		p := Policy{BaseDelay: base, MaxDelay: time.Second, JitterStrategy: JitterEqual}
		for i := 0; i < 200; i++ {
			got := p.Jittered(base)
			if got < base/2 || got > base {
				t.Fatalf("Jittered = %v, out of [%v, %v]", got, base/2, base)
			}
		}
	})

	t.Run("full stays within full..1.5x", func(t *testing.T) {
		p := Policy{BaseDelay: base, MaxDelay: time.Second, JitterStrategy: JitterFull}
		for i := 0; i < 200; i++ {
			got := p.Jittered(base)
			if got < base || got > base+base/2 {
				t.Fatalf("Jittered = %v, out of [%v, %v]", got, base, base+base/2)
			}
		}
	})
}

func TestPolicyNormalize(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr bool
	}{
		{"zero value gets defaults", Policy{}, false},
		{"negative attempts", Policy{MaxAttempts: -1}, true},
		{"negative delay", Policy{BaseDelay: -time.Second}, true},
		{"base above max", Policy{BaseDelay: time.Minute, MaxDelay: time.Second}, true},
		{"multiplier below one", Policy{Multiplier: 0.5}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := tt.policy
			err := p.Normalize()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Normalize() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if p.MaxAttempts != 3 || p.BaseDelay != 100*time.Millisecond || p.Multiplier != 2.0 {
					t.Errorf("unexpected normalized policy: %+v", p)
				}
			}
		})
	}

	p := Policy{JitterStrategy: JitterStrategy(7)}
	if err := p.Normalize(); err == nil {
		t.Error("expected error for unknown jitter strategy")
	}
}

func TestJittered_SharedPolicy(t *testing.T) {
	p := Policy{BaseDelay: 10 * time.Millisecond, JitterStrategy: JitterEqual}
	if err := p.Normalize(); err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	var wg sync.WaitGroup
	for g := 0; g < 16; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 1; i <= 100; i++ {
				d := p.DelayFor(i%3 + 1)
				if got := p.Jittered(d); got < d/2 || got > d {
					t.Errorf("Jittered(%v) = %v", d, got)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestSleep(t *testing.T) {
	if err := Sleep(context.Background(), time.Millisecond); err != nil {
		t.Errorf("Sleep() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if err := Sleep(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep did not return promptly on cancellation")
	}
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, true},
		{"temporary error", customError{"temp", true}, true},
		{"non-temporary error", customError{"not temp", false}, false},
		{"regular error", errors.New("regular"), false},
		{"io.EOF", io.EOF, true},
		{"io.ErrUnexpectedEOF", io.ErrUnexpectedEOF, true},
		{"net.ErrClosed", net.ErrClosed, true},
		{"url error with timeout", &url.Error{
			Op:  "Get",
			URL: "http://example.com",
			Err: &net.OpError{Op: "dial", Err: &os.SyscallError{Syscall: "connect", Err: syscall.ETIMEDOUT}},
		}, true},
		{"connection reset", &net.OpError{
			Op:  "read",
			Net: "tcp",
			Err: &os.SyscallError{Syscall: "read", Err: syscall.ECONNRESET},
		}, true},
		{"dns temporary error", &url.Error{
			Op:  "Get",
			URL: "http://example.com",
			Err: &net.DNSError{IsTemporary: true},
		}, true},
		{"url error wrapping canceled", &url.Error{Op: "Get", URL: "http://example.com", Err: context.Canceled}, false},
		{"url error wrapping unknown", &url.Error{Op: "Get", URL: "http://example.com", Err: errors.New("unsupported protocol scheme")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransient(tt.err); got != tt.expected {
				t.Errorf("IsTransient(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}

func TestDoRetryableError(t *testing.T) {
	p := Policy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}

	var attempts int32
	fn := func(ctx context.Context) error {
		if atomic.AddInt32(&attempts, 1) < 3 {
			return customError{"temporary failure", true}
		}
		return nil
	}

	if err := Do(context.Background(), p, fn, nil); err != nil {
		t.Errorf("expected success after retries, got error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoNonRetryableError(t *testing.T) {
	var attempts int32
	expectedErr := errors.New("permanent error")

	err := Do(context.Background(), DefaultPolicy(), func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return expectedErr
	}, func(error) bool { return false })

	if err != expectedErr {
		t.Errorf("expected permanent error, got: %v", err)
	}
	if attempts != 1 {
		t.Errorf("expected 1 attempt (no retries), got %d", attempts)
	}
}

func TestDoMaxAttemptsReached(t *testing.T) {
	p := Policy{MaxAttempts: 2, BaseDelay: time.Millisecond, MaxDelay: 10 * time.Millisecond}
	expectedErr := customError{"always fails", true}

	var attempts int32
	err := Do(context.Background(), p, func(ctx context.Context) error {
		atomic.AddInt32(&attempts, 1)
		return expectedErr
	}, nil)

	var retryErr *RetriesExceededError
	if !errors.As(err, &retryErr) {
		t.Fatalf("expected RetriesExceededError, got %T", err)
	}
	if retryErr.Attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", retryErr.Attempts)
	}
	if !errors.Is(err, expectedErr) {
		t.Errorf("should be able to unwrap to original error")
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDoContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p := Policy{MaxAttempts: 5, BaseDelay: 50 * time.Millisecond, MaxDelay: 100 * time.Millisecond}

	var attempts int32
	err := Do(ctx, p, func(ctx context.Context) error {
		if atomic.AddInt32(&attempts, 1) == 2 {
			cancel() // cancel after second attempt
		}
		return customError{"retryable", true}
	}, nil)

	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got: %v", err)
	}
	if attempts != 2 {
		t.Errorf("expected 2 attempts, got %d", attempts)
	}
}

func TestDoInvalidPolicy(t *testing.T) {
	err := Do(context.Background(), Policy{MaxAttempts: -1}, func(ctx context.Context) error { return nil }, nil)
	if err == nil || err.Error() != "retry: MaxAttempts cannot be negative" {
		t.Errorf("expected validation error, got: %v", err)
	}
}
