// Package ingestion forwards ingestion requests to the external ingestion
// service and relays its answer.
package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nebari-dev/docshelf/internal/apperr"
)

// maxResponseBytes bounds how much of an upstream reply is relayed.
const maxResponseBytes = 10 << 20

// Response is the upstream reply relayed to the caller.
type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

// Client posts payloads to a single upstream URL.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client for url. A non-positive timeout disables the
// client-side deadline.
func NewClient(url string, timeout time.Duration) *Client {
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Trigger forwards payload as JSON. Any transport error or non-2xx reply is
// reported as an upstream failure; the cause is logged, not returned to callers.
func (c *Client) Trigger(ctx context.Context, payload []byte) (*Response, error) {
	if len(bytes.TrimSpace(payload)) == 0 {
		payload = []byte("{}")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, c.fail(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.fail(fmt.Errorf("post: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, c.fail(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, c.fail(fmt.Errorf("upstream returned %d: %s", resp.StatusCode, truncate(body, 512)))
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/json"
	}
	return &Response{StatusCode: resp.StatusCode, ContentType: contentType, Body: body}, nil
}

func (c *Client) fail(cause error) error {
	slog.Error("Ingestion trigger failed", "url", c.url, "error", cause)
	return apperr.Wrap(apperr.KindUpstream, "failed to trigger ingestion process", cause)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
