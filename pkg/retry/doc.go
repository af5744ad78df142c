// Package retry implements the retry policy used by the HackMD request
// executor: which attempt outcomes are retried, and how long to wait
// between attempts.
//
// Key Features:
//   - Exponential backoff: BaseDelay * Multiplier^(attempt-1), capped at MaxDelay
//   - Optional bounded jitter (None, Equal, Full)
//   - Rate-limited outcomes are never retried
//   - Network error detection for transport failures (IsTransient)
//   - Cancellable waits (Sleep)
//
// Basic Usage:
//
//	p := retry.DefaultPolicy() // 3 attempts, 100ms, 200ms
//	for attempt := 1; ; attempt++ {
//	    class := send()
//	    if !p.ShouldRetry(class, attempt) {
//	        break
//	    }
//	    if err := retry.Sleep(ctx, p.DelayFor(attempt)); err != nil {
//	        return err
//	    }
//	}
//
// Local operations that fail transiently (e.g. a busy database) can use Do:
//
//	err := retry.Do(ctx, retry.DefaultPolicy(), fn, isBusy)
package retry
