package gemini

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type MockGenerator struct {
	GenerateContentFunc func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

func (m *MockGenerator) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return m.GenerateContentFunc(ctx, model, contents, config)
}

var _ ContentGenerator = (*MockGenerator)(nil)

func response(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: genai.RoleModel}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestUnderstand(t *testing.T) {
	gen := &MockGenerator{
		GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
			assert.Equal(t, DefaultModel, model)
			require.Len(t, contents, 1)
			assert.Equal(t, "mijn dochter Sanne zit in havo 4", contents[0].Parts[0].Text)
			assert.Equal(t, "application/json", config.ResponseMIMEType)
			assert.Contains(t, config.SystemInstruction.Parts[0].Text, "written in Dutch")
			return response(`{"student_name":"Sanne",`, `"school_level":"havo"}`), nil
		},
	}

	raw, err := NewWithGenerator(gen, "").Understand(context.Background(), "mijn dochter Sanne zit in havo 4", "nl")
	require.NoError(t, err)
	assert.JSONEq(t, `{"student_name":"Sanne","school_level":"havo"}`, string(raw))
}

func TestUnderstandErrors(t *testing.T) {
	tests := []struct {
		name    string
		resp    *genai.GenerateContentResponse
		err     error
		wantErr string
	}{
		{name: "api error", err: errors.New("quota"), wantErr: "generate content"},
		{name: "no candidates", resp: &genai.GenerateContentResponse{}, wantErr: "no candidates"},
		{name: "blank parts", resp: response(""), wantErr: "empty response"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &MockGenerator{
				GenerateContentFunc: func(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
					return tt.resp, tt.err
				},
			}
			_, err := NewWithGenerator(gen, "gemini-test").Understand(context.Background(), "hallo", "nl")
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	_, err := NewClient(context.Background(), "", "")
	assert.Error(t, err)
}
