package ollama

import (
	"context"

	"github.com/kalambet/booktalk/internal/dialogue"
)

// Backend answers chat turns with one local model.
type Backend struct {
	client      *Client
	model       string
	temperature float64
}

func NewBackend(c *Client, model string, temperature float64) *Backend {
	if model == "" {
		model = DefaultModel
	}
	return &Backend{client: c, model: model, temperature: temperature}
}

// Model returns the model name used for completions.
func (b *Backend) Model() string {
	return b.model
}

func (b *Backend) Complete(ctx context.Context, system string, history []dialogue.Message) (string, error) {
	msgs := make([]dialogue.Message, 0, len(history)+1)
	msgs = append(msgs, dialogue.Message{Role: dialogue.RoleSystem, Content: system})
	msgs = append(msgs, history...)
	return b.client.Chat(ctx, b.model, msgs, b.temperature)
}
