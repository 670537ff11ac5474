package assist

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/intake-cli/internal/config"
	"github.com/sells-group/intake-cli/pkg/anthropic"
)

// AnthropicGenerator adapts the Anthropic client to the Generator interface.
type AnthropicGenerator struct {
	client anthropic.Client
	model  string
}

// NewAnthropicGenerator builds a generator over the shared client.
func NewAnthropicGenerator(client anthropic.Client, cfg config.AnthropicConfig) *AnthropicGenerator {
	return &AnthropicGenerator{client: client, model: cfg.Model}
}

func (g *AnthropicGenerator) Generate(ctx context.Context, system, prompt string, maxTokens int) (string, error) {
	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: int64(maxTokens),
		System:    system,
		Messages: []anthropic.Message{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", ErrTimedOut
		}
		return "", eris.Wrap(err, "assist: create message")
	}

	resp.Usage.LogCost(g.model, "assist")
	return resp.Text(), nil
}
