package clients

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// MaxResponseBytes caps how much of a backend answer is read.
const MaxResponseBytes = 8 << 20

// HTTPDoer defines http.Client interface subset.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Request is one call to the battery backend. Body is sent as JSON unless ContentType says
// otherwise.
type Request struct {
	Op          string
	Method      string
	Path        string
	Body        []byte
	ContentType string
}

// Response is the raw backend answer.
type Response struct {
	Status int
	Body   []byte
}

// BaseClient sends requests to the backend root and reports transport trouble as NetworkError.
type BaseClient struct {
	baseURL string
	client  HTTPDoer
}

// NewBaseClient builds client with base URL.
func NewBaseClient(baseURL string, client HTTPDoer) *BaseClient {
	return &BaseClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Send executes req. Any HTTP status is returned as is; only a failed round trip or an
// unreadable or oversized body is an error.
func (c *BaseClient) Send(ctx context.Context, req Request) (*Response, error) {
	var reader io.Reader
	if req.Body != nil {
		reader = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+"/"+strings.TrimLeft(req.Path, "/"), reader)
	if err != nil {
		return nil, &NetworkError{Op: req.Op, Err: err}
	}
	if req.Body != nil {
		contentType := req.ContentType
		if contentType == "" {
			contentType = "application/json"
		}
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Op: req.Op, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseBytes+1))
	if err != nil {
		return nil, &NetworkError{Op: req.Op, Err: fmt.Errorf("read response: %w", err)}
	}
	if len(body) > MaxResponseBytes {
		return nil, &NetworkError{Op: req.Op, Err: fmt.Errorf("response exceeds %d bytes", MaxResponseBytes)}
	}
	return &Response{Status: resp.StatusCode, Body: body}, nil
}

// NewDefaultHTTPClient returns *http.Client with timeout.
func NewDefaultHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}
