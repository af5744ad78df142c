package executor

import (
	"context"
	"net/http"
)

// Transport sends one HTTP request and returns the raw response. It does
// not retry, classify or decode; failures to obtain a response at all are
// returned as errors.
type Transport interface {
	Send(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error)

// Send implements Transport.
func (f TransportFunc) Send(ctx context.Context, method, url string, header http.Header, body []byte) (*Response, error) {
	return f(ctx, method, url, header, body)
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}
