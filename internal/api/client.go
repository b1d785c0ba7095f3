package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nilcar/leads-console/internal/metrics"
)

// DefaultBaseURL is the backend the console talks to unless configured otherwise.
const DefaultBaseURL = "http://localhost:8091/api"

// TokenSource supplies the bearer token for outgoing requests.
// An empty token means the request is sent unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) string
}

// StaticToken is a TokenSource with a fixed value.
type StaticToken string

func (s StaticToken) Token(context.Context) string { return string(s) }

// Client is the authenticated HTTP client for the leads backend.
type Client struct {
	baseURL    string
	tokens     TokenSource
	httpClient *http.Client
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// NewClient builds a client rooted at baseURL, e.g. http://localhost:8091/api.
func NewClient(baseURL string, tokens TokenSource, logger *log.Logger, opts ...Option) *Client {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if tokens == nil {
		tokens = StaticToken("")
	}
	c := &Client{
		baseURL:    base,
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend root.
func (c *Client) BaseURL() string { return c.baseURL }

// do issues one request. in is JSON-encoded when non-nil; out is decoded when
// non-nil and the response has a body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in, out interface{}) error {
	endpoint := method + " " + path
	start := time.Now()
	err := c.roundTrip(ctx, endpoint, method, path, query, in, out)
	metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	metrics.APIRequestsTotal.WithLabelValues(endpoint, outcome(err)).Inc()
	return err
}

func (c *Client) roundTrip(ctx context.Context, endpoint, method, path string, query url.Values, in, out interface{}) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", endpoint, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", endpoint, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	reqID := uuid.NewString()
	req.Header.Set("X-Request-ID", reqID)
	if tok := c.tokens.Token(ctx); tok != "" {
		req.Header.Set("Authorization", "Bearer "+tok)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TransportError{Endpoint: endpoint, Err: err}
	}
	c.logger.Printf("%s -> %d (%s)", endpoint, resp.StatusCode, reqID)

	if resp.StatusCode/100 != 2 {
		return &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: truncateBody(strings.TrimSpace(string(data)), 400)}
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		if out != nil {
			return &DecodeError{Endpoint: endpoint, Err: fmt.Errorf("empty body")}
		}
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &DecodeError{Endpoint: endpoint, Err: err}
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsUnauthorized(err):
		return "unauthorized"
	}
	switch err.(type) {
	case *StatusError:
		return "status"
	case *DecodeError:
		return "decode"
	case *TransportError:
		return "transport"
	}
	return "error"
}
