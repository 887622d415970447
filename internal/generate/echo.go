package generate

import (
	"context"
	"fmt"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// EchoBackend answers without calling a model. Useful in development and tests.
type EchoBackend struct{}

// NewEchoBackend creates an EchoBackend.
func NewEchoBackend() *EchoBackend {
	return &EchoBackend{}
}

// Generate echoes the newest turn.
func (EchoBackend) Generate(_ context.Context, req domain.GenerationRequest) (*domain.GenerationResponse, error) {
	last := ""
	if n := len(req.Messages); n > 0 {
		last = req.Messages[n-1].Content
	}
	return &domain.GenerationResponse{Content: []domain.ContentItem{{
		Type: "text",
		Text: fmt.Sprintf("You said: %q", last),
	}}}, nil
}
