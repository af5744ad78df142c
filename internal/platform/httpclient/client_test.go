package httpclient_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	httpclient "hackmd-go/internal/platform/httpclient"
)

func TestClient_Send_ReadsResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Ratelimit-Userremaining", "5")
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"n1"}`)
	}))
	defer srv.Close()

	c := httpclient.New()
	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, `{"id":"n1"}`, string(resp.Body))
	require.Equal(t, "5", resp.Header.Get("X-RateLimit-UserRemaining"))
}

func TestClient_Send_DoesNotRetry(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&attempts, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := httpclient.New()
	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, int32(1), atomic.LoadInt32(&attempts))
}

func TestClient_Send_Body(t *testing.T) {
	var got []byte
	var method, contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method = r.Method
		contentType = r.Header.Get("Content-Type")
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	h := http.Header{}
	h.Set("Content-Type", "application/json")
	c := httpclient.New()
	_, err := c.Send(context.Background(), http.MethodPatch, srv.URL, h, []byte(`{"content":"x"}`))
	require.NoError(t, err)
	require.Equal(t, http.MethodPatch, method)
	require.Equal(t, "application/json", contentType)
	require.Equal(t, `{"content":"x"}`, string(got))
}

func TestClient_Send_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	c := httpclient.New()
	_, err := c.Send(ctx, http.MethodGet, srv.URL, nil, nil)
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestClient_Send_ResponseTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, strings.Repeat("a", 64))
	}))
	defer srv.Close()

	c := httpclient.New(httpclient.WithMaxResponseBytes(16))
	_, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.ErrorIs(t, err, httpclient.ErrResponseTooLarge)

	c = httpclient.New(httpclient.WithMaxResponseBytes(0))
	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	require.Len(t, resp.Body, 64)
}

func TestClient_Send_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	c := httpclient.New()
	_, err := c.Send(context.Background(), http.MethodGet, addr, nil, nil)
	require.Error(t, err)
}

func TestClient_Send_InvalidURL(t *testing.T) {
	c := httpclient.New()
	_, err := c.Send(context.Background(), http.MethodGet, "://bad", nil, nil)
	require.Error(t, err)
}

func TestClient_Send_LogsRedactedURL(t *testing.T) {
	var buf bytes.Buffer
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	u, err := url.Parse(srv.URL + "/v1/notes?token=secret")
	require.NoError(t, err)
	u.User = url.UserPassword("user", "hunter2")

	c := httpclient.New(
		httpclient.WithLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))),
	)
	_, _ = c.Send(context.Background(), http.MethodGet, u.String(), nil, nil)
	require.Contains(t, buf.String(), "/v1/notes")
	require.NotContains(t, buf.String(), "secret")
	require.NotContains(t, buf.String(), "hunter2")
}

type rtFunc func(*http.Request) (*http.Response, error)

func (f rtFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func TestClient_WithTransport(t *testing.T) {
	var used bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	rt := rtFunc(func(req *http.Request) (*http.Response, error) {
		used = true
		return http.DefaultTransport.RoundTrip(req)
	})
	c := httpclient.New(httpclient.WithTransport(rt))

	_, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	require.True(t, used)
}

func TestClient_WithHTTPClient(t *testing.T) {
	var used bool
	hc := &http.Client{Transport: rtFunc(func(req *http.Request) (*http.Response, error) {
		used = true
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader(`{}`)),
			Request:    req,
		}, nil
	})}
	c := httpclient.New(httpclient.WithHTTPClient(hc))

	resp, err := c.Send(context.Background(), http.MethodGet, "https://api.hackmd.test/v1/me", nil, nil)
	require.NoError(t, err)
	require.True(t, used)
	require.Equal(t, `{}`, string(resp.Body))
}

type closingRT struct {
	http.RoundTripper
	closed bool
}

func (c *closingRT) CloseIdleConnections() { c.closed = true }

func TestClient_Send_421ClosesIdle(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMisdirectedRequest)
	}))
	defer srv.Close()

	rt := &closingRT{RoundTripper: http.DefaultTransport}
	c := httpclient.New(httpclient.WithTransport(rt))

	resp, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusMisdirectedRequest, resp.StatusCode)
	require.True(t, rt.closed)
}

func TestClient_Send_Parallel(t *testing.T) {
	var count int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&count, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := httpclient.New()
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Send(context.Background(), http.MethodGet, srv.URL, nil, nil)
			require.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(10), atomic.LoadInt32(&count))
}
