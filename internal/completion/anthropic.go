package completion

import (
	"context"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/sells-group/outpost/internal/resilience"
	"github.com/sells-group/outpost/pkg/anthropic"
)

const jsonSystemPrompt = "Respond with a single valid JSON object and nothing else."

// Anthropic adapts the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
}

// NewAnthropic creates an Anthropic-backed Completer.
func NewAnthropic(client anthropic.Client) *Anthropic {
	return &Anthropic{client: client}
}

// AnthropicFactory returns a Factory that builds Anthropic clients with opts.
func AnthropicFactory(opts ...option.RequestOption) Factory {
	return func(_ context.Context, apiKey string) (Completer, error) {
		return NewAnthropic(anthropic.NewClient(apiKey, opts...)), nil
	}
}

// Complete implements Completer.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 500
	}
	temp := req.Temperature
	mreq := anthropic.MessageRequest{
		Model:       req.Model,
		MaxTokens:   maxTokens,
		Messages:    []anthropic.Message{{Role: "user", Content: req.Prompt}},
		Temperature: &temp,
	}
	if req.JSON {
		mreq.System = jsonSystemPrompt
	}

	resp, err := a.client.CreateMessage(ctx, mreq)
	if err != nil {
		var apiErr *sdk.Error
		if errors.As(err, &apiErr) && resilience.IsTransientHTTPStatus(apiErr.StatusCode) {
			return "", resilience.NewTransientError(err, apiErr.StatusCode)
		}
		return "", err
	}
	text := resp.Text()
	if text == "" {
		return "", ErrEmptyChoices
	}
	return text, nil
}
