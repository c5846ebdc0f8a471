// Package gemini answers chat turns with Google's Gemini models through the
// genai SDK.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/kalambet/booktalk/internal/dialogue"
)

const DefaultModel = "gemini-2.5-flash"

// generator is the slice of *genai.Models the backend uses.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Backend implements dialogue.Backend on the Gemini API.
type Backend struct {
	models      generator
	model       string
	temperature float32
}

// New creates a Gemini backend. baseURL may be empty for the public endpoint.
func New(ctx context.Context, apiKey, baseURL, model string, temperature float64) (*Backend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return newBackend(client.Models, model, temperature), nil
}

func newBackend(g generator, model string, temperature float64) *Backend {
	if model == "" {
		model = DefaultModel
	}
	return &Backend{models: g, model: model, temperature: float32(temperature)}
}

func (b *Backend) Complete(ctx context.Context, system string, history []dialogue.Message) (string, error) {
	contents := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == dialogue.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	resp, err := b.models.GenerateContent(ctx, b.model, contents, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(b.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 {
		if resp != nil && resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("prompt blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", errors.New("no candidates returned")
	}
	return resp.Text(), nil
}
