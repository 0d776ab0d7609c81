package completion

import (
	"context"

	"github.com/sells-group/outpost/pkg/groq"
)

// Groq adapts the Groq chat completions client.
type Groq struct {
	client groq.Client
}

// NewGroq creates a Groq-backed Completer.
func NewGroq(client groq.Client) *Groq {
	return &Groq{client: client}
}

// GroqFactory returns a Factory that builds Groq clients with opts.
func GroqFactory(opts ...groq.Option) Factory {
	return func(_ context.Context, apiKey string) (Completer, error) {
		return NewGroq(groq.NewClient(apiKey, opts...)), nil
	}
}

// Complete implements Completer.
func (g *Groq) Complete(ctx context.Context, req Request) (string, error) {
	temp := req.Temperature
	creq := groq.ChatCompletionRequest{
		Model:       req.Model,
		Messages:    []groq.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		creq.MaxTokens = &maxTokens
	}
	if req.JSON {
		creq.ResponseFormat = groq.JSONObject
	}

	resp, err := g.client.ChatCompletion(ctx, creq)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyChoices
	}
	return resp.Choices[0].Message.Content, nil
}
