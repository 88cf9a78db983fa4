// Package analysis calls the external retriever service that scores report
// text and writes a risk narrative.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single analysis call.
const DefaultTimeout = 60 * time.Second

type Request struct {
	Text string `json:"text"`
}

// Result carries the narrative and score. Both are optional on the wire.
type Result struct {
	Answer string   `json:"answer"`
	Score  *float64 `json:"score"`
}

// StatusError is returned when the service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis service returned status %d: %s", e.StatusCode, e.Body)
}

// Analyzer is what callers depend on; *Client implements it.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (*Result, error)
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) { cl.httpClient = c }
}

func WithTimeout(d time.Duration) Option {
	return func(cl *Client) { cl.timeout = d }
}

type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
}

func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{},
		timeout:    DefaultTimeout,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Analyze(ctx context.Context, text string) (*Result, error) {
	payload, err := json.Marshal(Request{Text: text})
	if err != nil {
		return nil, fmt.Errorf("encoding analysis request: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("building analysis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling analysis service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding analysis response: %w", err)
	}
	return &result, nil
}
