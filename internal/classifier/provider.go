package classifier

import (
	"net/http"

	"newswatcher/internal/model"
)

// Provider resolves a usable classifier for a user, or reports that the
// user has no classifier credential configured.
type Provider interface {
	For(user *model.User) (Classifier, bool)
}

// GeminiProvider builds per-user Gemini classifiers from user settings.
type GeminiProvider struct {
	model  string
	client *http.Client
}

// NewGeminiProvider creates a provider using the given model name and HTTP
// client. The client's timeout bounds each classification call.
func NewGeminiProvider(model string, client *http.Client) *GeminiProvider {
	return &GeminiProvider{model: model, client: client}
}

// For returns a classifier for the user, or false when the user has no
// API key configured.
func (p *GeminiProvider) For(user *model.User) (Classifier, bool) {
	if user.Settings.GeminiAPIKey == "" {
		return nil, false
	}
	return NewGemini(user.Settings.GeminiAPIKey, p.model, p.client), true
}
