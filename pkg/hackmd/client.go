package hackmd

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hackmd-go/internal/executor"
	"hackmd-go/internal/platform/httpclient"
	"hackmd-go/pkg/apierr"
	"hackmd-go/pkg/retry"
)

const (
	// DefaultBaseURL is the public HackMD API endpoint.
	DefaultBaseURL = "https://api.hackmd.io/v1"
	// DefaultTimeout bounds each attempt.
	DefaultTimeout = 30 * time.Second
	// DefaultUserAgent is sent unless WithUserAgent overrides it.
	DefaultUserAgent = "hackmd-go"
)

// Transport sends one HTTP request and returns the fully read response.
// Implementations must not retry.
type Transport = executor.Transport

// TransportFunc adapts a function to Transport.
type TransportFunc = executor.TransportFunc

// Response is the raw response returned by a Transport.
type Response = executor.Response

// Client is a HackMD API client. It is safe for concurrent use.
type Client struct {
	exec      *executor.Executor
	baseURL   *url.URL
	log       *slog.Logger
	transport Transport
}

type settings struct {
	baseURL   string
	timeout   time.Duration
	overall   time.Duration
	policy    retry.Policy
	wrap      bool
	hc        *http.Client
	rt        http.RoundTripper
	maxBody   *int64
	transport Transport
	log       *slog.Logger
	headers   http.Header
	userAgent string
}

// Option configures Client.
type Option func(*settings)

// WithBaseURL points the client at another API endpoint.
func WithBaseURL(u string) Option {
	return func(s *settings) { s.baseURL = u }
}

// WithTimeout sets the per-attempt timeout. Negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) { s.timeout = d }
}

// WithOverallTimeout bounds each call including all retries and backoff.
func WithOverallTimeout(d time.Duration) Option {
	return func(s *settings) { s.overall = d }
}

// WithRetry sets the attempt limit and the delay before the first retry.
// Later delays double.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(s *settings) {
		s.policy.MaxAttempts = maxAttempts
		s.policy.BaseDelay = baseDelay
	}
}

// WithRetryPolicy replaces the whole retry policy.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *settings) { s.policy = p }
}

// WithWrapResponseErrors selects whether non-success responses surface as
// *apierr.Error (true, the default) or *apierr.ResponseError.
func WithWrapResponseErrors(v bool) Option {
	return func(s *settings) { s.wrap = v }
}

// WithHTTPClient sends requests through hc. Ignored when WithTransport is set.
func WithHTTPClient(hc *http.Client) Option {
	return func(s *settings) { s.hc = hc }
}

// WithRoundTripper sends requests through rt, for proxies or test doubles
// at the net/http level. Ignored when WithTransport or WithHTTPClient is set.
func WithRoundTripper(rt http.RoundTripper) Option {
	return func(s *settings) { s.rt = rt }
}

// WithMaxResponseBytes limits how much of a response body is read; a larger
// body fails the attempt. Zero removes the limit. Ignored when WithTransport
// is set.
func WithMaxResponseBytes(n int64) Option {
	return func(s *settings) { s.maxBody = &n }
}

// WithTransport replaces the HTTP transport entirely.
func WithTransport(t Transport) Option {
	return func(s *settings) { s.transport = t }
}

// WithLogger sets the logger. Without it the client logs nothing.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithHeaders adds default headers to every request.
func WithHeaders(h map[string]string) Option {
	return func(s *settings) {
		for k, v := range h {
			s.headers.Set(k, v)
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) { s.userAgent = ua }
}

// New creates a client authenticated with the given access token.
// It fails with an apierr.KindValidation error for an empty or malformed
// token or base URL.
func New(token string, opts ...Option) (*Client, error) {
	s := settings{
		baseURL:   DefaultBaseURL,
		timeout:   DefaultTimeout,
		policy:    retry.DefaultPolicy(),
		wrap:      true,
		headers:   make(http.Header),
		userAgent: DefaultUserAgent,
	}
	for _, o := range opts {
		o(&s)
	}

	base, err := parseBaseURL(s.baseURL)
	if err != nil {
		return nil, err
	}
	if s.log == nil {
		s.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	t := s.transport
	if t == nil {
		hopts := []httpclient.Option{httpclient.WithLogger(s.log)}
		if s.hc != nil {
			hopts = append(hopts, httpclient.WithHTTPClient(s.hc))
		}
		if s.rt != nil && s.hc == nil {
			hopts = append(hopts, httpclient.WithTransport(s.rt))
		}
		if s.maxBody != nil {
			hopts = append(hopts, httpclient.WithMaxResponseBytes(*s.maxBody))
		}
		t = httpclient.New(hopts...)
	}

	exec, err := executor.New(t, executor.Config{
		BaseURL:            base,
		Token:              token,
		Header:             s.headers,
		UserAgent:          s.userAgent,
		Timeout:            s.timeout,
		OverallTimeout:     s.overall,
		Retry:              s.policy,
		WrapResponseErrors: s.wrap,
		Logger:             s.log,
	})
	if err != nil {
		return nil, err
	}
	return &Client{exec: exec, baseURL: base, log: s.log, transport: t}, nil
}

// Close releases idle connections of the built-in HTTP transport. The
// client stays usable.
func (c *Client) Close() error {
	if ic, ok := c.transport.(interface{ CloseIdleConnections() }); ok {
		ic.CloseIdleConnections()
	}
	return nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, &apierr.Error{Kind: apierr.KindValidation, Message: "invalid base URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, apierr.Validation("base URL must use http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, apierr.Validation("base URL has no host")
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// BaseURL returns the API endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// CallOption overrides client configuration for one call.
type CallOption = executor.CallOption

// CallTimeout overrides the per-attempt timeout for one call.
func CallTimeout(d time.Duration) CallOption { return executor.WithTimeout(d) }

// CallRetry overrides the attempt limit for one call. One disables retries.
func CallRetry(maxAttempts int) CallOption { return executor.WithMaxAttempts(maxAttempts) }

// CallRetryPolicy replaces the retry policy for one call.
func CallRetryPolicy(p retry.Policy) CallOption { return executor.WithRetryPolicy(p) }

// CallHeader sets a header for one call.
func CallHeader(key, value string) CallOption { return executor.WithHeader(key, value) }

func (c *Client) do(ctx context.Context, req executor.Request, out any, opts []CallOption) error {
	return c.exec.Execute(ctx, req, out, opts...)
}

func (c *Client) doJSON(ctx context.Context, method, path string, payload, out any, opts []CallOption) error {
	if err := validate.Struct(payload); err != nil {
		return validationError(err)
	}
	req, err := executor.NewJSONRequest(method, path, payload)
	if err != nil {
		return &apierr.Error{Kind: apierr.KindValidation, Message: "failed to encode request body", Err: err}
	}
	return c.do(ctx, req, out, opts)
}

// segment escapes one path element after checking it is present. Dot
// segments are rejected: URL joining would resolve them and address a
// different endpoint.
func segment(name, v string) (string, error) {
	switch strings.TrimSpace(v) {
	case "":
		return "", apierr.Validation("%s is required", name)
	case ".", "..":
		return "", apierr.Validation("%s %q is not a valid path segment", name, v)
	}
	return url.PathEscape(v), nil
}
