package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"newswatcher/internal/model"
)

// RSS fetches and parses RSS/Atom feeds.
type RSS struct {
	client    HTTPClient
	extractor Extractor
	log       *slog.Logger
}

// NewRSS creates an RSS producer. The extractor is optional; when set, item
// content is replaced with the extracted full article text where possible.
func NewRSS(client HTTPClient, extractor Extractor, log *slog.Logger) *RSS {
	return &RSS{client: client, extractor: extractor, log: log}
}

// Fetch downloads the feed at the source's location and converts its entries
// into items. Entries missing a title, link, or description are skipped.
func (r *RSS) Fetch(ctx context.Context, source model.Source) ([]model.Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Location, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	feed, err := gofeed.NewParser().ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	var items []model.Item
	for _, entry := range feed.Items {
		item, ok := r.parseEntry(source, entry)
		if !ok {
			r.log.Debug("skipping entry with missing fields",
				"source_id", source.ID, "title", entry.Title)
			continue
		}
		if r.extractor != nil && item.URL != "" {
			if full, err := r.extractor.Extract(ctx, item.URL); err != nil {
				r.log.Debug("content extraction failed, keeping description",
					"url", item.URL, "error", err)
			} else if full != "" {
				item.Content = full
			}
		}
		items = append(items, item)
	}
	return items, nil
}

func (r *RSS) parseEntry(source model.Source, entry *gofeed.Item) (model.Item, bool) {
	title := strings.TrimSpace(entry.Title)
	link := strings.TrimSpace(entry.Link)
	desc := strings.TrimSpace(entry.Description)
	if title == "" || link == "" || desc == "" {
		return model.Item{}, false
	}

	externalID := entry.GUID
	if externalID == "" {
		externalID = link
	}

	raw, _ := json.Marshal(map[string]string{
		"title":     title,
		"link":      link,
		"published": entry.Published,
	})

	return model.Item{
		SourceID:    source.ID,
		Title:       title,
		Content:     desc,
		URL:         link,
		ExternalID:  externalID,
		PublishedAt: entryPublished(entry),
		FetchedAt:   time.Now().UTC(),
		Raw:         raw,
	}, true
}

func entryPublished(entry *gofeed.Item) time.Time {
	if entry.PublishedParsed != nil {
		return entry.PublishedParsed.UTC()
	}
	if entry.UpdatedParsed != nil {
		return entry.UpdatedParsed.UTC()
	}
	return time.Now().UTC()
}
