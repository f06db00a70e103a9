// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// maxErrorBody caps how much of an error response is kept.
const maxErrorBody = 512

// ErrEmptyBaseURL is returned when a client is built without a base URL.
var ErrEmptyBaseURL = errors.New("provider base URL is empty")

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether a retry could succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// ClientConfig configures one provider client.
type ClientConfig struct {
	// BaseURL is the service root, e.g. http://features:8081.
	BaseURL string `koanf:"url"`

	// Timeout is the transport-level ceiling. Per-call deadlines come from
	// the caller's context and are normally much shorter.
	Timeout time.Duration `koanf:"timeout"`
}

// jsonClient is the shared HTTP plumbing for every provider.
type jsonClient struct {
	baseURL    string
	httpClient *http.Client
}

func newJSONClient(cfg ClientConfig) (*jsonClient, error) {
	base := strings.TrimSuffix(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, ErrEmptyBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &jsonClient{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 50,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// getJSON issues a GET and decodes the body into out.
func (c *jsonClient) getJSON(ctx context.Context, path string, out interface{}) error {
	return c.do(ctx, http.MethodGet, path, nil, out)
}

// postJSON encodes in, POSTs it and decodes the body into out.
func (c *jsonClient) postJSON(ctx context.Context, path string, in, out interface{}) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, payload, out)
}

func (c *jsonClient) do(ctx context.Context, method, path string, payload []byte, out interface{}) error {
	fullURL := c.baseURL + path

	var body io.Reader = http.NoBody
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, body)
	if err != nil {
		return fmt.Errorf("create request failed: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{
			Method:     method,
			URL:        fullURL,
			StatusCode: resp.StatusCode,
			Body:       readBodyForError(resp.Body),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// readBodyForError reads a bounded prefix of an error response body.
func readBodyForError(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(b))
}

// scoredItem is the item shape shared by recall and hot-content responses.
type scoredItem struct {
	ContentID string  `json:"content_id"`
	Score     float64 `json:"score"`
}

type scoredItemsResponse struct {
	Items []scoredItem `json:"items"`
}
