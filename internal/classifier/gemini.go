// Package classifier evaluates items against natural-language task prompts
// using the Gemini API.
package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash-lite"

// Result is the parsed outcome of classifying one item against one prompt.
type Result struct {
	Matched    bool
	Thinking   string
	TokensUsed int
}

// Classifier decides whether an item matches a task prompt.
type Classifier interface {
	Classify(ctx context.Context, prompt, title, content string) (*Result, error)
}

// Gemini is a Classifier backed by the Gemini generateContent API.
type Gemini struct {
	apiKey  string
	model   string
	client  *http.Client
	baseURL string
}

// NewGemini creates a Gemini classifier with the given API key and model.
func NewGemini(apiKey, model string, client *http.Client) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{apiKey: apiKey, model: model, client: client, baseURL: defaultBaseURL}
}

// SetBaseURL overrides the API base URL (useful for testing).
func (g *Gemini) SetBaseURL(url string) {
	g.baseURL = url
}

type geminiRequest struct {
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	Contents          []geminiContent  `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64         `json:"temperature"`
	ResponseMimeType string          `json:"responseMimeType"`
	ResponseSchema   json.RawMessage `json:"responseSchema"`
}

var verdictSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"result": {"type": "boolean"},
		"thinking": {"type": "string"}
	},
	"required": ["result", "thinking"]
}`)

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	UsageMetadata struct {
		PromptTokenCount     int `json:"promptTokenCount"`
		CandidatesTokenCount int `json:"candidatesTokenCount"`
	} `json:"usageMetadata"`
}

// Classify sends the item and prompt to Gemini and parses the structured
// verdict out of the response.
func (g *Gemini) Classify(ctx context.Context, prompt, title, content string) (*Result, error) {
	reqBody := geminiRequest{
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemInstruction(prompt)}},
		},
		Contents: []geminiContent{
			{Parts: []geminiPart{{Text: fmt.Sprintf("Title: %s\n\nContent: %s", title, content)}}},
		},
		GenerationConfig: generationConfig{
			Temperature:      0.1,
			ResponseMimeType: "application/json",
			ResponseSchema:   verdictSchema,
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call gemini: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gemini status %d: %s", resp.StatusCode, string(respBody))
	}

	var gemResp geminiResponse
	if err := json.Unmarshal(respBody, &gemResp); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if len(gemResp.Candidates) == 0 || len(gemResp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("empty response")
	}

	var verdict struct {
		Result   bool   `json:"result"`
		Thinking string `json:"thinking"`
	}
	text := gemResp.Candidates[0].Content.Parts[0].Text
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return nil, fmt.Errorf("parse verdict %q: %w", text, err)
	}

	return &Result{
		Matched:    verdict.Result,
		Thinking:   verdict.Thinking,
		TokensUsed: gemResp.UsageMetadata.PromptTokenCount + gemResp.UsageMetadata.CandidatesTokenCount,
	}, nil
}

func systemInstruction(prompt string) string {
	return fmt.Sprintf(
		"You are a news filter assistant. Your task is to analyze news articles "+
			"and determine if they match the following criteria:\n\n%s\n\n"+
			"Return a JSON object with:\n"+
			"- 'result': true if the news matches the criteria, false otherwise\n"+
			"- 'thinking': brief explanation of your decision", prompt)
}
