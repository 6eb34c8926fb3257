// Package scrape extracts readable article text from web pages.
package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	readability "github.com/go-shiori/go-readability"
)

const (
	maxContentLength = 8000
	maxBodySize      = 5 * 1024 * 1024
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Readability extracts article text using a readability heuristic.
type Readability struct {
	client HTTPClient
}

// New creates a Readability extractor with the given HTTP client.
func New(client HTTPClient) *Readability {
	return &Readability{client: client}
}

// Extract fetches rawURL and returns its readable text content, truncated
// to a fixed maximum length.
func (r *Readability) Extract(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxBodySize), u)
	if err != nil {
		return "", fmt.Errorf("extract content: %w", err)
	}

	content := article.TextContent
	if len(content) > maxContentLength {
		content = content[:maxContentLength]
	}
	return content, nil
}
