// Package generate assembles a context window and calls the generation backend.
package generate

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// ErrGenerationFailed is returned when the backend call or its response is unusable.
var ErrGenerationFailed = errors.New("generation failed")

// Config bounds generation calls.
type Config struct {
	MaxOutputTokens int
	Timeout         time.Duration
}

// DefaultConfig returns default generation limits.
func DefaultConfig() Config {
	return Config{
		MaxOutputTokens: 4096,
		Timeout:         120 * time.Second,
	}
}

// Generator produces replies from a conversation history.
type Generator struct {
	backend domain.GenerationBackend
	cfg     Config
	logger  *slog.Logger
}

// New creates a Generator over backend.
func New(backend domain.GenerationBackend, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = DefaultConfig().MaxOutputTokens
	}
	return &Generator{backend: backend, cfg: cfg, logger: logger}
}

// Generate returns the reply text for history under session's root and permissions.
func (g *Generator) Generate(ctx context.Context, history []domain.Message, session domain.Session) (string, error) {
	req := domain.GenerationRequest{
		SystemPreamble:  Preamble(session),
		Messages:        buildTurns(history),
		MaxOutputTokens: g.cfg.MaxOutputTokens,
	}

	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := g.backend.Generate(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
	if resp == nil || len(resp.Content) == 0 {
		return "", fmt.Errorf("%w: response has no content", ErrGenerationFailed)
	}

	g.logger.Debug("Generation completed",
		"session_id", session.ID,
		"turns", len(req.Messages),
		"duration", time.Since(start),
	)
	return resp.Content[0].Text, nil
}
