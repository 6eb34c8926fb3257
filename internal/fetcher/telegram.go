package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"newswatcher/internal/model"
)

// Telegram fetches recent messages from a public channel via the
// t.me/s/<channel> web preview.
type Telegram struct {
	client HTTPClient
}

// NewTelegram creates a Telegram channel producer.
func NewTelegram(client HTTPClient) *Telegram {
	return &Telegram{client: client}
}

// Fetch downloads the channel preview page and converts its messages into
// items. Messages without text are skipped.
func (t *Telegram) Fetch(ctx context.Context, source model.Source) ([]model.Item, error) {
	channel := ChannelName(source.Location)
	if channel == "" {
		return nil, fmt.Errorf("invalid channel location %q", source.Location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://t.me/s/"+channel, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}

	var items []model.Item
	doc.Find("div.tgme_widget_message").Each(func(_ int, sel *goquery.Selection) {
		item, ok := parseMessage(source, channel, sel)
		if !ok {
			return
		}
		items = append(items, item)
	})
	return items, nil
}

func parseMessage(source model.Source, channel string, sel *goquery.Selection) (model.Item, bool) {
	dataPost, ok := sel.Attr("data-post")
	if !ok {
		return model.Item{}, false
	}
	_, msgID, ok := strings.Cut(dataPost, "/")
	if !ok || msgID == "" {
		return model.Item{}, false
	}

	text := strings.TrimSpace(sel.Find(".tgme_widget_message_text").First().Text())
	if text == "" {
		return model.Item{}, false
	}

	published := time.Now().UTC()
	if dt, ok := sel.Find("time").First().Attr("datetime"); ok {
		if parsed, err := time.Parse(time.RFC3339, dt); err == nil {
			published = parsed.UTC()
		}
	}

	raw, _ := json.Marshal(map[string]string{
		"channel":    channel,
		"message_id": msgID,
	})

	return model.Item{
		SourceID:    source.ID,
		Title:       truncate(text, 100),
		Content:     text,
		URL:         fmt.Sprintf("https://t.me/%s/%s", channel, msgID),
		ExternalID:  msgID,
		PublishedAt: published,
		FetchedAt:   time.Now().UTC(),
		Raw:         raw,
	}, true
}

// ChannelName normalizes a channel location: it accepts a bare name,
// an @name, or a t.me URL, and returns the bare channel name.
func ChannelName(location string) string {
	s := strings.TrimSpace(location)
	s = strings.TrimPrefix(s, "https://t.me/")
	s = strings.TrimPrefix(s, "http://t.me/")
	s = strings.TrimPrefix(s, "t.me/")
	s = strings.TrimPrefix(s, "s/")
	s = strings.TrimPrefix(s, "@")
	s = strings.TrimSuffix(s, "/")
	if strings.ContainsAny(s, "/ ") {
		return ""
	}
	return s
}
