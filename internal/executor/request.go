package executor

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"hackmd-go/pkg/apierr"
	"hackmd-go/pkg/retry"
)

// Request describes one API call relative to the client's base URL.
// Endpoint methods build it; the executor never modifies it.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   []byte
}

// NewRequest creates a Request without a body.
func NewRequest(method, path string) Request {
	return Request{Method: method, Path: path}
}

// NewJSONRequest creates a Request whose body is v encoded as JSON.
func NewJSONRequest(method, path string, v any) (Request, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return Request{}, err
	}
	return Request{
		Method: method,
		Path:   path,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   bytes.TrimRight(buf.Bytes(), "\n"),
	}, nil
}

// callSettings are the per-call overrides of Config.
type callSettings struct {
	timeout time.Duration
	policy  retry.Policy
	header  http.Header
	// err is an invalid override; Execute reports it before sending.
	err error
}

// CallOption overrides client configuration for a single call.
type CallOption func(*callSettings)

// WithTimeout overrides the per-attempt timeout for one call. Zero or
// negative disables the per-attempt timeout.
func WithTimeout(d time.Duration) CallOption {
	return func(s *callSettings) { s.timeout = d }
}

// WithRetryPolicy replaces the retry policy for one call. An invalid policy
// fails the call with a Validation error.
func WithRetryPolicy(p retry.Policy) CallOption {
	return func(s *callSettings) {
		if err := p.Normalize(); err != nil {
			s.fail(&apierr.Error{Kind: apierr.KindValidation, Message: "invalid retry policy", Err: err})
			return
		}
		s.policy = p
	}
}

// WithMaxAttempts overrides only the attempt limit for one call.
func WithMaxAttempts(n int) CallOption {
	return func(s *callSettings) {
		if n < 1 {
			s.fail(apierr.Validation("max attempts must be at least 1, got %d", n))
			return
		}
		s.policy.MaxAttempts = n
	}
}

func (s *callSettings) fail(err error) {
	if s.err == nil {
		s.err = err
	}
}

// WithHeader sets a header for one call, above client defaults.
func WithHeader(key, value string) CallOption {
	return func(s *callSettings) {
		if s.header == nil {
			s.header = make(http.Header)
		}
		s.header.Set(key, value)
	}
}
