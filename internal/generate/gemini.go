package generate

import (
	"context"
	"fmt"

	"github.com/ashureev/shsh-chat/internal/domain"
	"google.golang.org/genai"
)

// GeminiBackend calls the Gemini API through google.golang.org/genai.
type GeminiBackend struct {
	client    *genai.Client
	modelName string
}

// NewGeminiBackend creates a backend for modelName authenticated with apiKey.
func NewGeminiBackend(ctx context.Context, apiKey, modelName string) (*GeminiBackend, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GeminiBackend{client: client, modelName: modelName}, nil
}

// Generate sends the preamble as system instruction and the turns as contents.
func (g *GeminiBackend) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	contents := make([]*genai.Content, 0, len(req.Messages))
	for _, m := range req.Messages {
		var role genai.Role = genai.RoleUser
		if m.Role == domain.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.SystemPreamble, genai.RoleUser),
		MaxOutputTokens:   int32(req.MaxOutputTokens),
	}

	res, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate content: %w", err)
	}
	return convertResponse(res), nil
}

func convertResponse(res *genai.GenerateContentResponse) *domain.GenerationResponse {
	out := &domain.GenerationResponse{}
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return out
	}
	for _, part := range res.Candidates[0].Content.Parts {
		if part == nil || part.Text == "" {
			continue
		}
		out.Content = append(out.Content, domain.ContentItem{Type: "text", Text: part.Text})
	}
	return out
}
