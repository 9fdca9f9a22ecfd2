package report

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrDisabled is returned by the Static generator.
var ErrDisabled = errors.New("report: generator disabled")

// Generator produces text from a system instruction and a user prompt.
type Generator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

// GenAI generates text with a Gemini model.
type GenAI struct {
	client *genai.Client
	model  string
}

// NewGenAI creates a GenAI generator. apiKey must be non-empty.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("report: genai API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("report: create genai client: %w", err)
	}
	return &GenAI{client: client, model: model}, nil
}

// Generate implements Generator.
func (g *GenAI) Generate(ctx context.Context, system, prompt string) (string, error) {
	var cfg *genai.GenerateContentConfig
	if system != "" {
		cfg = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("report: generate content: %w", err)
	}
	return resp.Text(), nil
}

// Static is the generator used when no model is configured. Every call
// fails with ErrDisabled, so callers see the fallback text.
type Static struct{}

// Generate implements Generator.
func (Static) Generate(context.Context, string, string) (string, error) {
	return "", ErrDisabled
}
