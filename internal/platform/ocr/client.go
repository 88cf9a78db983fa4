// Package ocr calls the external OCR service that turns a report scan into
// text, optionally with an analysis already attached.
package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single OCR call.
const DefaultTimeout = 60 * time.Second

// RetrieverResponse is the analysis the OCR service may embed in its reply.
type RetrieverResponse struct {
	Answer string   `json:"answer"`
	Score  *float64 `json:"score"`
}

// Result is the decoded OCR reply.
type Result struct {
	ExtractedText     string             `json:"extracted_text"`
	RetrieverResponse *RetrieverResponse `json:"retriever_response,omitempty"`
}

// StatusError is returned when the OCR service answers with a non-2xx status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("ocr service returned status %d: %s", e.StatusCode, e.Body)
}

// Extractor is what callers depend on; *Client implements it.
type Extractor interface {
	Extract(ctx context.Context, fileName string, content io.Reader) (*Result, error)
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

// Extract uploads content as the multipart field "file". The call is not
// retried.
func (c *Client) Extract(ctx context.Context, fileName string, content io.Reader) (*Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("creating multipart part: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, fmt.Errorf("copying file into request: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart writer: %w", err)
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("building ocr request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling ocr service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding ocr response: %w", err)
	}
	return &result, nil
}
