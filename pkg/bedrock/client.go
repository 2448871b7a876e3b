package bedrock

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/savaki/tutorbot/pkg/prefill"
)

const (
	// Default Bedrock model ID for Claude 3.5 Haiku
	DefaultModelID = "anthropic.claude-3-5-haiku-20241022-v1:0"

	// extraction replies are one small JSON object
	maxTokens = 512
)

// Invoker is the subset of the Bedrock Runtime client used here
type Invoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

var _ Invoker = (*bedrockruntime.Client)(nil)

// Client is a client for AWS Bedrock Runtime (Claude models)
type Client struct {
	client  Invoker
	modelID string
}

var _ prefill.TextUnderstanding = (*Client)(nil)

// NewClient creates a new Bedrock client
func NewClient(cfg aws.Config) *Client {
	return NewWithInvoker(bedrockruntime.NewFromConfig(cfg))
}

// NewWithInvoker creates a Client on top of an existing invoker
func NewWithInvoker(invoker Invoker) *Client {
	return &Client{
		client:  invoker,
		modelID: DefaultModelID,
	}
}

// SetModel allows overriding the default model ID
func (c *Client) SetModel(modelID string) {
	if modelID != "" {
		c.modelID = modelID
	}
}

// Message is one turn in the Claude Messages API format
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BedrockRequest represents a request to Bedrock (Claude Messages API format)
type BedrockRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Temperature      float64   `json:"temperature"`
	Messages         []Message `json:"messages"`
	System           string    `json:"system,omitempty"`
}

// BedrockResponse represents a response from Bedrock
type BedrockResponse struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Role    string `json:"role"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Model      string `json:"model"`
	StopReason string `json:"stop_reason"`
	Usage      struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Understand asks Claude to extract intake fields from text. The reply is
// returned as-is; parsing belongs to the prefill package.
func (c *Client) Understand(ctx context.Context, text, languageHint string) ([]byte, error) {
	if text == "" {
		return nil, fmt.Errorf("text cannot be empty")
	}

	req := BedrockRequest{
		AnthropicVersion: "bedrock-2023-05-31",
		MaxTokens:        maxTokens,
		Messages:         []Message{{Role: "user", Content: text}},
		System:           prefill.Instructions(languageHint),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	output, err := c.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.modelID),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke bedrock model: %w", err)
	}

	var response BedrockResponse
	if err := json.Unmarshal(output.Body, &response); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	var out []byte
	for _, block := range response.Content {
		if block.Type == "text" {
			out = append(out, block.Text...)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty response from Bedrock")
	}
	return out, nil
}
