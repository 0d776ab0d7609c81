// Package completion adapts text-completion providers to a single
// prompt-in, content-out interface used by the pipeline stages.
package completion

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/outpost/internal/resilience"
)

// ErrEmptyChoices is returned when the provider answers without content.
var ErrEmptyChoices = eris.New("completion: empty choices")

// Request is one single-prompt completion call.
type Request struct {
	Model       string
	Prompt      string
	Temperature float64
	MaxTokens   int
	// JSON asks the provider for a single JSON object.
	JSON bool
}

// Completer returns the content of the first choice for a prompt.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Factory builds a Completer for an API key resolved at run time.
type Factory func(ctx context.Context, apiKey string) (Completer, error)

// DecodeJSON unmarshals a JSON object from completion content, tolerating a
// surrounding markdown code fence.
func DecodeJSON(content string, v any) error {
	s := strings.TrimSpace(content)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	if err := json.Unmarshal([]byte(s), v); err != nil {
		return eris.Wrap(err, "completion: decode json")
	}
	return nil
}

// Breaker short-circuits calls after repeated consecutive provider failures.
type Breaker struct {
	next Completer
	cb   *resilience.CircuitBreaker
}

// NewCircuitBreaker builds the breaker shared by completion calls. Only
// transient provider failures (429, 5xx, transport) count toward opening it;
// a request rejected for one lead's content does not.
func NewCircuitBreaker(threshold int, reset time.Duration) *resilience.CircuitBreaker {
	return resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
		ShouldTrip:       resilience.IsTransient,
		OnStateChange: func(from, to resilience.CircuitState) {
			zap.L().Warn("completion circuit breaker state change",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
}

// WithBreaker wraps c with the shared circuit breaker cb.
func WithBreaker(c Completer, cb *resilience.CircuitBreaker) *Breaker {
	return &Breaker{next: c, cb: cb}
}

// Complete implements Completer.
func (b *Breaker) Complete(ctx context.Context, req Request) (string, error) {
	return resilience.ExecuteVal(ctx, b.cb, func(ctx context.Context) (string, error) {
		return b.next.Complete(ctx, req)
	})
}
