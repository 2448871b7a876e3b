// Package gemini is the Google Gemini backend for first-message extraction.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/savaki/tutorbot/pkg/prefill"
	"google.golang.org/genai"
)

const DefaultModel = "gemini-2.0-flash"

// ContentGenerator is the subset of the genai models service used here
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

var _ ContentGenerator = (*genai.Models)(nil)

// Client asks Gemini for a JSON intake record
type Client struct {
	models ContentGenerator
	model  string
}

var _ prefill.TextUnderstanding = (*Client)(nil)

// NewClient connects to the Gemini API with apiKey
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return NewWithGenerator(client.Models, model), nil
}

// NewWithGenerator wraps an existing generator
func NewWithGenerator(models ContentGenerator, model string) *Client {
	if model == "" {
		model = DefaultModel
	}
	return &Client{models: models, model: model}
}

func (c *Client) Understand(ctx context.Context, text, languageHint string) ([]byte, error) {
	var temperature float32
	resp, err := c.models.GenerateContent(ctx, c.model,
		[]*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: text}},
		}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: prefill.Instructions(languageHint)}}},
			Temperature:       &temperature,
			ResponseMIMEType:  "application/json",
		})
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, errors.New("no candidates returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		sb.WriteString(part.Text)
	}
	if sb.Len() == 0 {
		return nil, errors.New("empty response from Gemini")
	}
	return []byte(sb.String()), nil
}
