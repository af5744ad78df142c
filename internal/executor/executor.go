package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"

	"hackmd-go/pkg/apierr"
	"hackmd-go/pkg/retry"
)

// HeaderRequestID carries a per-call identifier, reused across retries.
const HeaderRequestID = "X-Request-ID"

// DefaultTimeout is the per-attempt timeout when Config.Timeout is unset.
const DefaultTimeout = 30 * time.Second

// Config is the static configuration shared by every call. It is read-only
// once passed to New.
type Config struct {
	BaseURL *url.URL
	Token   string
	// Header holds default headers; request headers win on conflict.
	Header    http.Header
	UserAgent string
	// Timeout bounds each attempt. Negative disables it.
	Timeout time.Duration
	// OverallTimeout bounds the whole call including retries. Zero disables it.
	OverallTimeout time.Duration
	Retry          retry.Policy
	// WrapResponseErrors selects *apierr.Error (true) or *apierr.ResponseError
	// (false) for non-success responses.
	WrapResponseErrors bool
	Logger             *slog.Logger
	NewRequestID       func() string
}

// Executor runs requests to completion: it authenticates, times out,
// classifies, retries and decodes. It holds no mutable state and is safe
// for concurrent use.
type Executor struct {
	cfg       Config
	transport Transport
	sleep     func(context.Context, time.Duration) error
}

// New validates cfg and returns an Executor sending through t.
func New(t Transport, cfg Config) (*Executor, error) {
	if t == nil {
		return nil, apierr.Validation("transport is required")
	}
	if cfg.BaseURL == nil || cfg.BaseURL.Host == "" {
		return nil, apierr.Validation("base URL is required")
	}
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, apierr.Validation("missing access token")
	}
	if strings.IndexFunc(cfg.Token, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return nil, apierr.Validation("access token contains whitespace or control characters")
	}
	if err := cfg.Retry.Normalize(); err != nil {
		return nil, &apierr.Error{Kind: apierr.KindValidation, Message: "invalid retry policy", Err: err}
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.NewRequestID == nil {
		cfg.NewRequestID = uuid.NewString
	}
	base := *cfg.BaseURL
	cfg.BaseURL = &base
	cfg.Header = cfg.Header.Clone()

	return &Executor{cfg: cfg, transport: t, sleep: retry.Sleep}, nil
}

// retryState lives for one Execute call.
type retryState struct {
	attempt int
	backoff time.Duration
}

// Execute sends req until it succeeds, fails permanently, is rate limited,
// runs out of attempts or ctx is done. On success the JSON body is decoded
// into out (nil skips decoding; *[]byte receives the raw body).
func (e *Executor) Execute(ctx context.Context, req Request, out any, opts ...CallOption) error {
	s := callSettings{timeout: e.cfg.Timeout, policy: e.cfg.Retry}
	for _, opt := range opts {
		opt(&s)
	}
	if s.err != nil {
		return s.err
	}

	target, err := e.resolve(req)
	if err != nil {
		return err
	}
	header := e.headers(req, s.header)

	if e.cfg.OverallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.OverallTimeout)
		defer cancel()
	}

	log := e.cfg.Logger.With(
		slog.String("method", req.Method),
		slog.String("path", req.Path),
		slog.String("request_id", header.Get(HeaderRequestID)),
	)

	st := retryState{attempt: 1}
	for {
		if err := ctx.Err(); err != nil {
			return e.canceled(err, st.attempt-1)
		}
		start := time.Now()
		o := e.send(ctx, req.Method, target, header, req.Body, s.timeout)
		dur := time.Since(start)

		switch o.Kind {
		case OutcomeSuccess:
			log.Debug("hackmd request", slog.Int("status", o.Status), slog.Duration("dur", dur), slog.Int("attempt", st.attempt))
			return e.decode(o, out, st.attempt)

		case OutcomeRateLimited:
			log.Warn("hackmd request rate limited", slog.Int("status", o.Status), slog.Int("attempt", st.attempt), slog.String("quota", o.RateLimit.String()))
			return e.responseError(o, st.attempt)

		case OutcomeFatal:
			log.Debug("hackmd request failed", slog.Int("status", o.Status), slog.Duration("dur", dur), slog.Int("attempt", st.attempt))
			return e.responseError(o, st.attempt)
		}

		// OutcomeRetryable or OutcomeTransport
		if !s.policy.ShouldRetry(o.Class(), st.attempt) {
			e.logFailure(log, o, st, 0, dur, "hackmd request giving up")
			return e.exhausted(o, st.attempt)
		}

		wait := s.policy.Jittered(s.policy.DelayFor(st.attempt))
		if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) <= wait {
			e.logFailure(log, o, st, wait, dur, "hackmd request deadline before next attempt")
			return e.deadlineBeforeRetry(o, st.attempt)
		}
		e.logFailure(log, o, st, wait, dur, "hackmd request retrying")

		if err := e.sleep(ctx, wait); err != nil {
			return e.canceled(err, st.attempt)
		}
		st.attempt++
		st.backoff += wait
	}
}

type sendResult struct {
	resp *Response
	err  error
}

// send performs one attempt under the per-attempt timeout. The attempt is
// abandoned as soon as its context is done, even if the transport ignores
// cancellation.
func (e *Executor) send(ctx context.Context, method, target string, header http.Header, body []byte, timeout time.Duration) Outcome {
	actx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		actx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	ch := make(chan sendResult, 1)
	go func() {
		resp, err := e.transport.Send(actx, method, target, header.Clone(), body)
		ch <- sendResult{resp: resp, err: err}
	}()

	select {
	case r := <-ch:
		if r.err != nil {
			if ctx.Err() == nil && errors.Is(actx.Err(), context.DeadlineExceeded) {
				return ClassifyTransportError(errors.Join(context.DeadlineExceeded, r.err), nil)
			}
			return ClassifyTransportError(r.err, ctx.Err())
		}
		if r.resp == nil {
			return Outcome{Kind: OutcomeFatal, Err: errors.New("transport returned no response")}
		}
		return Classify(r.resp.StatusCode, r.resp.Header, r.resp.Body)
	case <-actx.Done():
		return ClassifyTransportError(actx.Err(), ctx.Err())
	}
}

func (e *Executor) resolve(req Request) (string, error) {
	if req.Method == "" {
		return "", apierr.Validation("request method is required")
	}
	u := e.cfg.BaseURL.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}
	return u.String(), nil
}

// headers layers defaults < request < per-call, then sets Authorization.
func (e *Executor) headers(req Request, call http.Header) http.Header {
	h := make(http.Header)
	h.Set("Accept", "application/json")
	if e.cfg.UserAgent != "" {
		h.Set("User-Agent", e.cfg.UserAgent)
	}
	for _, layer := range []http.Header{e.cfg.Header, req.Header, call} {
		for k, vs := range layer {
			h.Del(k)
			for _, v := range vs {
				h.Add(k, v)
			}
		}
	}
	if len(req.Body) > 0 && h.Get("Content-Type") == "" {
		h.Set("Content-Type", "application/json")
	}
	if h.Get(HeaderRequestID) == "" {
		h.Set(HeaderRequestID, e.cfg.NewRequestID())
	}
	h.Set("Authorization", "Bearer "+e.cfg.Token)
	return h
}

func (e *Executor) decode(o Outcome, out any, attempts int) error {
	if out == nil {
		return nil
	}
	if len(o.Body) == 0 {
		if o.Status == http.StatusNoContent {
			return nil
		}
		return &apierr.Error{
			Kind:       apierr.KindUnexpected,
			Message:    "empty response body",
			StatusCode: o.Status,
			StatusText: http.StatusText(o.Status),
			Attempts:   attempts,
		}
	}
	if raw, ok := out.(*[]byte); ok {
		*raw = append((*raw)[:0], o.Body...)
		return nil
	}
	if err := json.Unmarshal(o.Body, out); err != nil {
		return &apierr.Error{
			Kind:       apierr.KindUnexpected,
			Message:    "failed to decode response body",
			StatusCode: o.Status,
			StatusText: http.StatusText(o.Status),
			Body:       o.Body,
			Attempts:   attempts,
			Err:        err,
		}
	}
	return nil
}

// responseError maps a rate-limited or fatal outcome.
func (e *Executor) responseError(o Outcome, attempts int) error {
	if o.Err != nil {
		return &apierr.Error{
			Kind:       apierr.KindUnexpected,
			Message:    "received an unreadable response from HackMD",
			StatusCode: o.Status,
			StatusText: http.StatusText(o.Status),
			Body:       o.Body,
			Attempts:   attempts,
			Err:        o.Err,
		}
	}
	if !e.cfg.WrapResponseErrors {
		return &apierr.ResponseError{StatusCode: o.Status, Header: o.Header, Body: o.Body, Attempts: attempts}
	}
	err := apierr.FromStatus(o.Status, o.Body)
	err.Attempts = attempts
	if o.Kind == OutcomeRateLimited {
		err.RateLimit = o.RateLimit
		if err.RateLimit == nil {
			err.RateLimit = &apierr.RateLimit{}
		}
	}
	return err
}

// exhausted maps the last retryable outcome once no more attempts are allowed.
func (e *Executor) exhausted(o Outcome, attempts int) error {
	if o.Kind == OutcomeTransport {
		msg := "request failed"
		if o.Timeout {
			msg = "request timed out"
		}
		if errors.Is(o.Err, context.Canceled) {
			msg = "request canceled"
		}
		return &apierr.Error{
			Kind:     apierr.KindTransport,
			Message:  msg,
			Attempts: attempts,
			Timeout:  o.Timeout,
			Err:      o.Err,
		}
	}
	return e.responseError(o, attempts)
}

// deadlineBeforeRetry reports a deadline that leaves no room for the next
// attempt. The last outcome stays visible: its status and body are copied
// and its error is wrapped next to context.DeadlineExceeded.
func (e *Executor) deadlineBeforeRetry(o Outcome, attempts int) error {
	err := &apierr.Error{
		Kind:     apierr.KindTransport,
		Message:  "deadline exceeded before next attempt",
		Attempts: attempts,
		Timeout:  true,
		Err:      fmt.Errorf("%w: %w", context.DeadlineExceeded, e.exhausted(o, attempts)),
	}
	if o.Kind != OutcomeTransport {
		err.StatusCode = o.Status
		err.StatusText = http.StatusText(o.Status)
		err.Body = o.Body
	}
	return err
}

func (e *Executor) canceled(err error, attempts int) error {
	msg := "request canceled"
	timeout := errors.Is(err, context.DeadlineExceeded)
	if timeout {
		msg = "request timed out"
	}
	return &apierr.Error{
		Kind:     apierr.KindTransport,
		Message:  msg,
		Attempts: attempts,
		Timeout:  timeout,
		Err:      err,
	}
}

func (e *Executor) logFailure(log *slog.Logger, o Outcome, st retryState, wait, dur time.Duration, msg string) {
	attrs := []slog.Attr{
		slog.Int("attempt", st.attempt),
		slog.Duration("dur", dur),
		slog.Duration("wait", wait),
		slog.Duration("backoff_total", st.backoff),
	}
	if o.Kind == OutcomeTransport {
		attrs = append(attrs, slog.Bool("timeout", o.Timeout), slog.Any("error", o.Err))
	} else {
		attrs = append(attrs, slog.Int("status", o.Status))
	}
	log.LogAttrs(context.Background(), slog.LevelWarn, msg, attrs...)
}
