package fetcher

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"newswatcher/internal/model"
)

type mockTransport struct {
	body       string
	statusCode int
	err        error
}

func (m *mockTransport) Do(_ *http.Request) (*http.Response, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &http.Response{
		StatusCode: m.statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(m.body)),
	}, nil
}

type stubExtractor struct {
	text string
	err  error
}

func (s *stubExtractor) Extract(_ context.Context, _ string) (string, error) {
	return s.text, s.err
}

func loadFixture(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path) //nolint:gosec // test-only fixture loading
	if err != nil {
		t.Fatalf("read fixture %s: %v", path, err)
	}
	return string(data)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func rssSource() model.Source {
	return model.Source{
		ID:       7,
		UserID:   1,
		Name:     "Cloud Weekly",
		Kind:     model.SourceRSS,
		Location: "https://cloudweekly.example.com/rss",
		IsActive: true,
	}
}

func TestRSSFetch(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	tests := []struct {
		name       string
		transport  *mockTransport
		wantTitles []string
		wantErr    bool
	}{
		{
			name:      "successful fetch skips entry without description",
			transport: &mockTransport{body: xml, statusCode: 200},
			wantTitles: []string{
				"Kubernetes 1.32 Released",
				"Postgres Tuning Guide",
				"Serverless Cost Survey",
			},
		},
		{
			name:      "http error status",
			transport: &mockTransport{body: "not found", statusCode: 404},
			wantErr:   true,
		},
		{
			name:      "network error",
			transport: &mockTransport{err: io.ErrUnexpectedEOF},
			wantErr:   true,
		},
		{
			name:      "invalid xml",
			transport: &mockTransport{body: "not xml at all", statusCode: 200},
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRSS(tt.transport, nil, discardLogger())
			items, err := r.Fetch(context.Background(), rssSource())

			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			var gotTitles []string
			for _, it := range items {
				gotTitles = append(gotTitles, it.Title)
			}
			if diff := cmp.Diff(tt.wantTitles, gotTitles); diff != "" {
				t.Errorf("titles mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestRSSFetchItemFields(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")
	r := NewRSS(&mockTransport{body: xml, statusCode: 200}, nil, discardLogger())

	items, err := r.Fetch(context.Background(), rssSource())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	first := items[0]
	if diff := cmp.Diff(int64(7), first.SourceID); diff != "" {
		t.Errorf("source id mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("https://cloudweekly.example.com/k8s-132", first.URL); diff != "" {
		t.Errorf("url mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff("cw-item-1", first.ExternalID); diff != "" {
		t.Errorf("external id mismatch (-want +got):\n%s", diff)
	}
	wantPublished := time.Date(2025, 1, 13, 10, 0, 0, 0, time.UTC)
	if !first.PublishedAt.Equal(wantPublished) {
		t.Errorf("published at = %v, want %v", first.PublishedAt, wantPublished)
	}
	if first.FetchedAt.IsZero() {
		t.Error("expected fetched at to be set")
	}
	if len(first.Raw) == 0 {
		t.Error("expected raw payload to be set")
	}

	// Entry without a GUID falls back to the link.
	last := items[2]
	if diff := cmp.Diff("https://cloudweekly.example.com/serverless-costs", last.ExternalID); diff != "" {
		t.Errorf("external id fallback mismatch (-want +got):\n%s", diff)
	}
}

func TestRSSFetchWithExtractor(t *testing.T) {
	xml := loadFixture(t, "../../testdata/sample.xml")

	tests := []struct {
		name        string
		extractor   *stubExtractor
		wantContent string
	}{
		{
			name:        "extracted text replaces description",
			extractor:   &stubExtractor{text: "Full article body."},
			wantContent: "Full article body.",
		},
		{
			name:        "extraction failure keeps description",
			extractor:   &stubExtractor{err: errors.New("boom")},
			wantContent: "The Kubernetes project announced version 1.32 with new scheduling features.",
		},
		{
			name:        "empty extraction keeps description",
			extractor:   &stubExtractor{text: ""},
			wantContent: "The Kubernetes project announced version 1.32 with new scheduling features.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRSS(&mockTransport{body: xml, statusCode: 200}, tt.extractor, discardLogger())
			items, err := r.Fetch(context.Background(), rssSource())
			if err != nil {
				t.Fatalf("fetch: %v", err)
			}
			if diff := cmp.Diff(tt.wantContent, items[0].Content); diff != "" {
				t.Errorf("content mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
