package classifier

import (
	"context"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/h2non/gock"

	"newswatcher/internal/model"
)

const geminiHost = "https://generativelanguage.googleapis.com"

func interceptedClient(t *testing.T) *http.Client {
	t.Helper()
	client := &http.Client{}
	gock.InterceptClient(client)
	t.Cleanup(gock.Off)
	return client
}

func TestGeminiClassify(t *testing.T) {
	client := interceptedClient(t)

	gock.New(geminiHost).
		Post("/v1beta/models/gemini-2.0-flash-lite:generateContent").
		MatchParam("key", "test-key").
		Reply(200).
		JSON(map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]any{
							{"text": `{"result": true, "thinking": "mentions kubernetes"}`},
						},
					},
				},
			},
			"usageMetadata": map[string]any{
				"promptTokenCount":     120,
				"candidatesTokenCount": 15,
			},
		})

	g := NewGemini("test-key", "", client)
	got, err := g.Classify(context.Background(), "kubernetes news", "K8s 1.32", "release notes")
	if err != nil {
		t.Fatalf("classify: %v", err)
	}

	want := &Result{Matched: true, Thinking: "mentions kubernetes", TokensUsed: 135}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result mismatch (-want +got):\n%s", diff)
	}
	if !gock.IsDone() {
		t.Error("expected all mocks to be consumed")
	}
}

func TestGeminiClassifyErrors(t *testing.T) {
	tests := []struct {
		name  string
		setup func()
	}{
		{
			name: "api error status",
			setup: func() {
				gock.New(geminiHost).
					Post("/v1beta/models/gemini-2.0-flash-lite:generateContent").
					Reply(429).
					BodyString(`{"error": {"message": "quota exceeded"}}`)
			},
		},
		{
			name: "malformed response body",
			setup: func() {
				gock.New(geminiHost).
					Post("/v1beta/models/gemini-2.0-flash-lite:generateContent").
					Reply(200).
					BodyString("not json")
			},
		},
		{
			name: "no candidates",
			setup: func() {
				gock.New(geminiHost).
					Post("/v1beta/models/gemini-2.0-flash-lite:generateContent").
					Reply(200).
					JSON(map[string]any{"candidates": []any{}})
			},
		},
		{
			name: "malformed verdict text",
			setup: func() {
				gock.New(geminiHost).
					Post("/v1beta/models/gemini-2.0-flash-lite:generateContent").
					Reply(200).
					JSON(map[string]any{
						"candidates": []map[string]any{
							{
								"content": map[string]any{
									"parts": []map[string]any{{"text": "plain text, no json"}},
								},
							},
						},
					})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := interceptedClient(t)
			tt.setup()

			g := NewGemini("test-key", "", client)
			if _, err := g.Classify(context.Background(), "p", "t", "c"); err == nil {
				t.Fatal("expected error, got nil")
			}
		})
	}
}

func TestGeminiProviderFor(t *testing.T) {
	provider := NewGeminiProvider("gemini-2.0-flash-lite", &http.Client{})

	tests := []struct {
		name   string
		user   model.User
		wantOK bool
	}{
		{
			name:   "user with api key",
			user:   model.User{ID: 1, Settings: model.UserSettings{GeminiAPIKey: "key-1"}},
			wantOK: true,
		},
		{
			name:   "user without api key",
			user:   model.User{ID: 2},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cl, ok := provider.For(&tt.user)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if tt.wantOK && cl == nil {
				t.Fatal("expected a classifier for user with key")
			}
		})
	}
}
