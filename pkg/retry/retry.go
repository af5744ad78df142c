package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/url"
	"os"
	"syscall"
	"time"
)

// JitterStrategy defines the jitter strategy to use
type JitterStrategy int

const (
	// JitterNone disables jitter
	JitterNone JitterStrategy = iota
	// JitterEqual keeps half of the delay and randomizes the other half
	JitterEqual
	// JitterFull adds up to +50% on top of the delay
	JitterFull
)

// Class is the retry-relevant category of a single attempt outcome.
type Class int

const (
	// ClassSuccess means the attempt succeeded; nothing to retry.
	ClassSuccess Class = iota
	// ClassTransient covers presumed-transient server errors and
	// connectivity/timeout failures.
	ClassTransient
	// ClassRateLimited is a 429. It is surfaced to the caller, never retried.
	ClassRateLimited
	// ClassPermanent covers failures retrying cannot fix.
	ClassPermanent
)

// String returns the string representation of the Class.
func (c Class) String() string {
	switch c {
	case ClassSuccess:
		return "success"
	case ClassTransient:
		return "transient"
	case ClassRateLimited:
		return "rate_limited"
	case ClassPermanent:
		return "permanent"
	default:
		return "unknown"
	}
}

const (
	// DefaultMaxAttempts is the number of attempts, including the first one.
	DefaultMaxAttempts = 3
	// DefaultBaseDelay is the wait before the first retry.
	DefaultBaseDelay = 100 * time.Millisecond
	// DefaultMaxDelay caps exponential growth.
	DefaultMaxDelay = 30 * time.Second
)

// Policy decides whether to retry and how long to wait between attempts.
type Policy struct {
	// MaxAttempts is the maximum number of attempts (including the first one)
	MaxAttempts int
	// BaseDelay is the delay before the first retry
	BaseDelay time.Duration
	// MaxDelay is the maximum delay between retries
	MaxDelay time.Duration
	// Multiplier is the exponential backoff multiplier
	Multiplier float64
	// JitterStrategy defines the jitter algorithm to use. Jitter draws from
	// the global math/rand/v2 source, so a Policy stays safe to share
	// between goroutines.
	JitterStrategy JitterStrategy
}

// DefaultPolicy returns 3 attempts, 100ms base delay, doubling, no jitter.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:    DefaultMaxAttempts,
		BaseDelay:      DefaultBaseDelay,
		MaxDelay:       DefaultMaxDelay,
		Multiplier:     2.0,
		JitterStrategy: JitterNone,
	}
}

// Normalize validates the policy and fills unset fields with defaults.
func (p *Policy) Normalize() error {
	if p.MaxAttempts < 0 {
		return errors.New("retry: MaxAttempts cannot be negative")
	}
	if p.MaxAttempts == 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.BaseDelay < 0 {
		return errors.New("retry: BaseDelay cannot be negative")
	}
	if p.BaseDelay == 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = DefaultMaxDelay
	}
	if p.BaseDelay > p.MaxDelay {
		return errors.New("retry: BaseDelay cannot be greater than MaxDelay")
	}
	if p.Multiplier == 0 {
		p.Multiplier = 2.0
	}
	if p.Multiplier < 1.0 {
		return errors.New("retry: Multiplier must be >= 1.0")
	}
	if p.JitterStrategy < JitterNone || p.JitterStrategy > JitterFull {
		return fmt.Errorf("retry: unknown JitterStrategy %d", p.JitterStrategy)
	}
	return nil
}

// ShouldRetry reports whether an attempt with the given outcome class
// should be followed by another one. Attempts are numbered from 1.
func (p Policy) ShouldRetry(class Class, attempt int) bool {
	if attempt >= p.MaxAttempts {
		return false
	}
	return class == ClassTransient
}

// DelayFor returns the wait after the given failed attempt:
// BaseDelay * Multiplier^(attempt-1), capped at MaxDelay.
// It is a pure function of the policy and attempt.
func (p Policy) DelayFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	maxDelay := p.MaxDelay
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	multiplier := p.Multiplier
	if multiplier < 1.0 {
		multiplier = 2.0
	}

	// Use integer math to avoid float precision issues for the common case
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		// Check for overflow before multiplication
		if delay > time.Duration(float64(maxDelay)/multiplier) {
			return maxDelay
		}
		if multiplier == 2.0 {
			delay *= 2
		} else {
			delay = time.Duration(float64(delay) * multiplier)
		}
	}
	if delay > maxDelay {
		return maxDelay
	}
	return delay
}

// Jittered applies the configured jitter strategy to the delay.
func (p Policy) Jittered(d time.Duration) time.Duration {
	if d <= 0 || p.JitterStrategy == JitterNone {
		return d
	}

	switch p.JitterStrategy {
	case JitterEqual:
		half := d / 2
		if half <= 0 {
			return d
		}
		return half + time.Duration(rand.Int64N(int64(half)+1))

	case JitterFull:
		extra := d / 2
		if extra <= 0 {
			return d
		}
		return clamp(d+time.Duration(rand.Int64N(int64(extra)+1)), d, p.MaxDelay)

	default:
		return d
	}
}

// clamp ensures the value is within the specified bounds
func clamp(value, min, max time.Duration) time.Duration {
	if max > 0 && value > max {
		return max
	}
	if value < min {
		return min
	}
	return value
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IsTransient reports whether a transport error is a connectivity or
// timeout failure worth retrying. Context cancellation is never transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	// Don't retry context cancellation
	if errors.Is(err, context.Canceled) {
		return false
	}

	// Retry on deadline exceeded (timeout)
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	// Check for net.Error with Timeout
	type netError interface {
		Timeout() bool
	}
	var ne netError
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	// Check for specific network errors
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// Check for net.ErrClosed
	if errors.Is(err, net.ErrClosed) {
		return true
	}

	// Check for DNS temporary errors
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) && (dnsErr.IsTemporary || dnsErr.IsTimeout) {
		return true
	}

	// Check for other network operation errors
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		var syscallErr *os.SyscallError
		if errors.As(opErr.Err, &syscallErr) {
			// Common temporary syscall errors
			switch syscallErr.Err {
			case syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED,
				syscall.ENETDOWN, syscall.ENETUNREACH, syscall.EPIPE,
				syscall.EHOSTUNREACH, syscall.ETIMEDOUT:
				return true
			}
		}
		if opErr.Op == "dial" {
			return true
		}
	}

	// url.Error wrapping any of the above is handled by errors.As; a bare
	// url.Error around an unknown cause is not retried.
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return false
	}

	// Check for temporary interface (fallback for compatibility)
	type temporary interface {
		Temporary() bool
	}
	if t, ok := err.(temporary); ok {
		return t.Temporary()
	}

	return false
}

// RetryableFunc is a function that can be retried
type RetryableFunc func(ctx context.Context) error

// IsRetryableFunc determines if an error should trigger a retry
type IsRetryableFunc func(err error) bool

// RetriesExceededError is returned by Do when attempts are exhausted
type RetriesExceededError struct {
	LastError error
	Attempts  int
}

func (e *RetriesExceededError) Error() string {
	return fmt.Sprintf("retry: max attempts exceeded (%d attempts): %v", e.Attempts, e.LastError)
}

func (e *RetriesExceededError) Unwrap() error {
	return e.LastError
}

// Do runs fn until it succeeds, returns an error isRetryable rejects, or
// the policy runs out of attempts. It is used for local operations such as
// database writes; HTTP calls go through the request executor instead.
func Do(ctx context.Context, policy Policy, fn RetryableFunc, isRetryable IsRetryableFunc) error {
	p := policy // Make a copy to avoid modifying the original
	if err := p.Normalize(); err != nil {
		return err
	}
	if isRetryable == nil {
		isRetryable = IsTransient
	}

	var lastErr error
	for attempt := 1; ; attempt++ {
		// Check context before each attempt
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}

		class := ClassPermanent
		if isRetryable(lastErr) {
			class = ClassTransient
		}
		if !p.ShouldRetry(class, attempt) {
			if class == ClassTransient {
				return &RetriesExceededError{LastError: lastErr, Attempts: attempt}
			}
			return lastErr
		}

		if err := Sleep(ctx, p.Jittered(p.DelayFor(attempt))); err != nil {
			return err
		}
	}
}
