// Package fetcher handles retrieval and parsing of remote sources.
package fetcher

import (
	"context"
	"net/http"

	"newswatcher/internal/model"
)

const (
	maxBodySize = 5 * 1024 * 1024
	userAgent   = "NewsWatcher/1.0"
)

// HTTPClient is the interface for performing HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Producer pulls currently-available items from a single source. Returned
// items are not yet persisted and carry no IDs.
type Producer interface {
	Fetch(ctx context.Context, source model.Source) ([]model.Item, error)
}

// Extractor retrieves the readable full text of an article URL.
type Extractor interface {
	Extract(ctx context.Context, url string) (string, error)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
