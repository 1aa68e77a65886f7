// Package httpx is the outbound HTTP adapter shared by every upstream client.
// It performs exactly one request per call, bounded by a timeout, and never retries.
package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/jmanzanog/quote-resolver/internal/domain"
)

const (
	// DefaultTimeout bounds a single outbound call.
	DefaultTimeout   = 8 * time.Second
	defaultUserAgent = "Mozilla/5.0"
	maxBodyBytes     = 4 << 20
)

// Request describes one outbound call. Method defaults to GET and Timeout
// to the client's timeout.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

// Response is the raw outcome of a call that produced an HTTP response.
type Response struct {
	Status int
	OK     bool
	Body   []byte
}

// Text returns the body as a string.
func (r *Response) Text() string {
	return string(r.Body)
}

// Client is a small wrapper around http.Client with sane defaults.
type Client struct {
	HTTP      *http.Client
	UserAgent string
	Timeout   time.Duration
}

// New creates a client whose calls time out after timeout (DefaultTimeout when zero).
func New(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 3 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		ForceAttemptHTTP2:     true,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   3 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	return &Client{
		HTTP:      &http.Client{Transport: transport},
		UserAgent: defaultUserAgent,
		Timeout:   timeout,
	}
}

// NewWithHTTPClient wraps an existing http.Client (for testing).
func NewWithHTTPClient(httpClient *http.Client, timeout time.Duration) *Client {
	c := New(timeout)
	c.HTTP = httpClient
	return c
}

// Get fetches rawURL as text.
func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	return c.Fetch(ctx, Request{URL: rawURL})
}

// GetJSON fetches rawURL and decodes it into out.
func (c *Client) GetJSON(ctx context.Context, rawURL string, out any) (*Response, bool, error) {
	return c.FetchJSON(ctx, Request{URL: rawURL}, out)
}

// Fetch performs the request and reads the whole body. A non-2xx status is
// not an error here; callers inspect Response.OK.
func (c *Client) Fetch(ctx context.Context, r Request) (*Response, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = c.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != nil {
		body = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timeout after %s: %s", domain.ErrUpstreamUnreachable, timeout, r.URL)
		}
		return nil, fmt.Errorf("%w: %w", domain.ErrUpstreamUnreachable, err)
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			slog.Warn("failed to close response body", "error", closeErr, "url", r.URL)
		}
	}()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: timeout reading body after %s: %s", domain.ErrUpstreamUnreachable, timeout, r.URL)
		}
		return nil, fmt.Errorf("%w: failed to read body: %w", domain.ErrUpstreamUnreachable, err)
	}

	return &Response{
		Status: resp.StatusCode,
		OK:     resp.StatusCode >= 200 && resp.StatusCode < 300,
		Body:   data,
	}, nil
}

// FetchJSON performs Fetch and strictly unmarshals the body into out. A body
// that is not valid JSON yields decoded=false rather than an error.
func (c *Client) FetchJSON(ctx context.Context, r Request, out any) (*Response, bool, error) {
	resp, err := c.Fetch(ctx, r)
	if err != nil {
		return nil, false, err
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return resp, false, nil
	}
	return resp, true, nil
}

// StatusError builds the error for an unsuccessful response.
func StatusError(resp *Response) error {
	return fmt.Errorf("%w: HTTP %d", domain.ErrUpstreamBadStatus, resp.Status)
}
