package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hackmd-go/pkg/apierr"
	"hackmd-go/pkg/retry"
)

// Rate-limit headers sent by HackMD with 429 responses.
const (
	HeaderRateLimitLimit     = "X-RateLimit-UserLimit"
	HeaderRateLimitRemaining = "X-RateLimit-UserRemaining"
	HeaderRateLimitReset     = "X-RateLimit-UserReset"
	HeaderRetryAfter         = "Retry-After"
)

// ErrMalformedBody marks a success response whose body is not valid JSON.
var ErrMalformedBody = errors.New("malformed response body")

// Classify turns a response into an attempt outcome. It is a pure function
// of its inputs.
func Classify(status int, header http.Header, body []byte) Outcome {
	o := Outcome{Status: status, Header: header, Body: body}

	switch {
	case status >= 200 && status <= 299:
		if status == http.StatusNoContent || len(trimSpace(body)) == 0 {
			o.Kind = OutcomeSuccess
			o.Body = nil
			return o
		}
		if !json.Valid(body) {
			o.Kind = OutcomeFatal
			o.Err = fmt.Errorf("%w: %d bytes of invalid JSON", ErrMalformedBody, len(body))
			return o
		}
		o.Kind = OutcomeSuccess

	case status == http.StatusTooManyRequests:
		o.Kind = OutcomeRateLimited
		o.RateLimit = parseRateLimit(header)

	case status == http.StatusInternalServerError,
		status == http.StatusBadGateway,
		status == http.StatusServiceUnavailable,
		status == http.StatusGatewayTimeout:
		o.Kind = OutcomeRetryable

	default:
		o.Kind = OutcomeFatal
	}
	return o
}

// ClassifyTransportError turns a failure to obtain a response into an
// outcome. callerErr is the caller context's error at the time of the
// failure: when the caller gave up, the failure is never transient.
func ClassifyTransportError(err, callerErr error) Outcome {
	o := Outcome{Kind: OutcomeTransport, Err: err}
	if callerErr != nil {
		o.Err = callerErr
		o.Timeout = errors.Is(callerErr, context.DeadlineExceeded)
		return o
	}
	o.Timeout = errors.Is(err, context.DeadlineExceeded) || isTimeout(err)
	o.Transient = o.Timeout || retry.IsTransient(err)
	return o
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}

// parseRateLimit extracts best-effort quota metadata; absent or malformed
// headers leave the corresponding field nil.
func parseRateLimit(h http.Header) *apierr.RateLimit {
	rl := &apierr.RateLimit{}
	if h == nil {
		return rl
	}
	if v, ok := headerInt(h, HeaderRateLimitLimit); ok {
		rl.Limit = &v
	}
	if v, ok := headerInt(h, HeaderRateLimitRemaining); ok {
		rl.Remaining = &v
	}
	if v, ok := headerInt(h, HeaderRateLimitReset); ok && v > 0 {
		t := time.Unix(int64(v), 0).UTC()
		rl.Reset = &t
	}
	if d, ok := parseRetryAfter(h.Get(HeaderRetryAfter), h.Get("Date")); ok {
		rl.RetryAfter = &d
	}
	return rl
}

func headerInt(h http.Header, key string) (int, bool) {
	raw := strings.TrimSpace(h.Get(key))
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// parseRetryAfter parses a Retry-After value given in seconds or as an
// HTTP date. Dates are measured against the response Date header when
// present, otherwise against the local clock.
func parseRetryAfter(v, date string) (time.Duration, bool) {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0, false
		}
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(v); err == nil {
		var d time.Duration
		if now, err := http.ParseTime(date); err == nil {
			d = t.Sub(now)
		} else {
			d = time.Until(t)
		}
		if d < 0 {
			d = 0
		}
		return d, true
	}
	return 0, false
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
