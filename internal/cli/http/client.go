package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Envelope mirrors the JSON body every interface-service endpoint returns.
// Plain-text endpoints (describe) leave it zero.
type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
	Details json.RawMessage `json:"details,omitempty"`
	TraceID string          `json:"trace_id,omitempty"`
}

// Response is one completed exchange.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	RequestID  string

	// Envelope is set when the body decoded as a JSON envelope.
	Envelope *Envelope
}

// TraceID prefers the response header and falls back to the envelope.
func (r Response) TraceID() string {
	if id := r.Headers.Get("X-Trace-Id"); id != "" {
		return id
	}
	if r.Envelope != nil {
		return r.Envelope.TraceID
	}
	return ""
}

// Client talks to the interface-service.
type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = strings.TrimRight(baseURL, "/")
}

func (c *Client) SetTimeout(timeout time.Duration) {
	if timeout > 0 {
		c.http.Timeout = timeout
	}
}

// Do sends one request. Every request carries a fresh X-Request-Id so the
// service logs can be matched with CLI output.
func (c *Client) Do(ctx context.Context, method, path string, headers map[string]string, body []byte) (Response, error) {
	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Response{}, fmt.Errorf("build request failed: %w", err)
	}
	out := Response{RequestID: uuid.NewString()}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", out.RequestID)
	for k, v := range headers {
		if v != "" {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	out.Duration = time.Since(start)
	if err != nil {
		return out, fmt.Errorf("%s %s failed: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	out.StatusCode = resp.StatusCode
	out.Headers = resp.Header
	if out.Body, err = io.ReadAll(resp.Body); err != nil {
		return out, fmt.Errorf("read response body failed: %w", err)
	}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") || json.Valid(out.Body) {
		var env Envelope
		if json.Unmarshal(out.Body, &env) == nil && env.Code != 0 {
			out.Envelope = &env
		}
	}
	return out, nil
}
