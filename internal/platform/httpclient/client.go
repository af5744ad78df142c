package httpclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	stdhttp "net/http"
	"net/url"
	"time"

	"hackmd-go/internal/executor"
)

// DefaultMaxResponseBytes bounds how much of a response body is read.
const DefaultMaxResponseBytes int64 = 10 << 20

// ErrResponseTooLarge indicates the response body exceeds the read limit.
var ErrResponseTooLarge = errors.New("http: response body too large")

// Client sends single HTTP requests for the executor. It does not retry:
// retries, timeouts and classification belong to executor.Executor.
type Client struct {
	hc      *stdhttp.Client
	log     *slog.Logger
	maxBody int64
}

var _ executor.Transport = (*Client)(nil)

// Option configures Client.
type Option func(*Client)

// WithLogger sets logger used by client.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithTransport sets custom transport.
func WithTransport(rt stdhttp.RoundTripper) Option {
	return func(c *Client) {
		if rt != nil {
			c.hc.Transport = rt
		}
	}
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *stdhttp.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.hc = hc
		}
	}
}

// WithMaxResponseBytes limits how much of a response body is read
// (0 disables the limit).
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) { c.maxBody = n }
}

// New creates configured Client.
func New(opts ...Option) *Client {
	tr := stdhttp.DefaultTransport.(*stdhttp.Transport).Clone()
	tr.MaxIdleConns = 100
	tr.MaxConnsPerHost = 100
	tr.MaxIdleConnsPerHost = 100
	tr.IdleConnTimeout = 90 * time.Second
	tr.TLSHandshakeTimeout = 10 * time.Second
	tr.ResponseHeaderTimeout = 30 * time.Second
	tr.ExpectContinueTimeout = 1 * time.Second

	c := &Client{
		hc:      &stdhttp.Client{Transport: tr},
		log:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxBody: DefaultMaxResponseBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Send performs one request and reads the whole response body.
func (c *Client) Send(ctx context.Context, method, rawURL string, header stdhttp.Header, body []byte) (*executor.Response, error) {
	var rd io.Reader
	if len(body) > 0 {
		rd = bytes.NewReader(body)
	}
	r, err := stdhttp.NewRequestWithContext(ctx, method, rawURL, rd)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	for k, vs := range header {
		r.Header[k] = append([]string(nil), vs...)
	}
	u := c.redactURL(r.URL)
	st := time.Now()
	resp, err := c.hc.Do(r)
	dur := time.Since(st)
	if err != nil {
		c.log.Debug("http request error", slog.String("method", method), slog.String("url", u), slog.Duration("dur", dur), slog.Any("error", err))
		return nil, err
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode == stdhttp.StatusMisdirectedRequest {
		if tr, ok := c.hc.Transport.(interface{ CloseIdleConnections() }); ok {
			tr.CloseIdleConnections()
		}
	}

	data, err := c.readBody(resp.Body)
	if err != nil {
		c.log.Debug("http response read error", slog.String("method", method), slog.String("url", u), slog.Int("status", resp.StatusCode), slog.Any("error", err))
		return nil, err
	}

	c.log.Debug("http request", slog.String("method", method), slog.String("url", u), slog.Int("status", resp.StatusCode), slog.Int("bytes", len(data)), slog.Duration("dur", dur))
	return &executor.Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}, nil
}

func (c *Client) readBody(b io.Reader) ([]byte, error) {
	if c.maxBody <= 0 {
		return io.ReadAll(b)
	}
	data, err := io.ReadAll(io.LimitReader(b, c.maxBody+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > c.maxBody {
		return nil, ErrResponseTooLarge
	}
	return data, nil
}

// CloseIdleConnections closes idle keep-alive connections.
func (c *Client) CloseIdleConnections() {
	c.hc.CloseIdleConnections()
}

// redactURL drops the query and any password before logging.
func (c *Client) redactURL(u *url.URL) string {
	r := *u
	r.RawQuery = ""
	return r.Redacted()
}

// drainAndClose drains up to 512KB from body and closes it.
func drainAndClose(b io.ReadCloser) {
	if b == nil {
		return
	}
	_, _ = io.CopyN(io.Discard, b, 512<<10)
	_ = b.Close()
}
