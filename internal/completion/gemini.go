package completion

import (
	"context"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"google.golang.org/genai"

	"github.com/sells-group/outpost/internal/resilience"
)

// GeminiModels is the subset of genai.Models used here.
type GeminiModels interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini adapts the Google Gen AI SDK.
type Gemini struct {
	models GeminiModels
}

// NewGemini creates a Gemini-backed Completer.
func NewGemini(models GeminiModels) *Gemini {
	return &Gemini{models: models}
}

// GeminiFactory returns a Factory that builds Gemini API clients. An empty
// baseURL uses the SDK default.
func GeminiFactory(baseURL string) Factory {
	return func(ctx context.Context, apiKey string) (Completer, error) {
		cc := &genai.ClientConfig{
			APIKey:  strings.TrimSpace(apiKey),
			Backend: genai.BackendGeminiAPI,
		}
		if baseURL != "" {
			cc.HTTPOptions.BaseURL = baseURL
		}
		client, err := genai.NewClient(ctx, cc)
		if err != nil {
			return nil, eris.Wrap(err, "gemini: new client")
		}
		return NewGemini(client.Models), nil
	}
}

// Complete implements Completer.
func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	cfg := &genai.GenerateContentConfig{
		CandidateCount: 1,
		Temperature:    genai.Ptr(float32(req.Temperature)),
	}
	if req.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.models.GenerateContent(ctx, req.Model, genai.Text(req.Prompt), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) && (apiErr.Code == 429 || apiErr.Code/100 == 5) {
			return "", resilience.NewTransientError(eris.Wrap(err, "gemini: generate content"), apiErr.Code)
		}
		return "", eris.Wrap(err, "gemini: generate content")
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyChoices
	}
	return text, nil
}
