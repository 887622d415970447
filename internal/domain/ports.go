package domain

import (
	"context"
	"errors"
)

// ErrMalformedResponse marks an executor reply that arrived but could not be decoded.
var ErrMalformedResponse = errors.New("malformed executor response")

// ExecRequest is sent to the filesystem executor for one command.
type ExecRequest struct {
	Operation Operation
	Path      string
	Content   string
	OldText   string
	NewText   string
}

// ExecResponse is the executor's answer. Data is either a string or a list of strings.
type ExecResponse struct {
	Success bool
	Data    any
	Error   string
}

// Executor performs filesystem operations on behalf of a session.
type Executor interface {
	Execute(ctx context.Context, req ExecRequest) (*ExecResponse, error)
}

// Turn is one role/content pair in a generation request.
type Turn struct {
	Role    Role
	Content string
}

// GenerationRequest is a single call to the generation backend.
type GenerationRequest struct {
	SystemPreamble  string
	Messages        []Turn
	MaxOutputTokens int
}

// ContentItem is one element of a generation response.
type ContentItem struct {
	Type string
	Text string
}

// GenerationResponse holds the ordered content items returned by the backend.
type GenerationResponse struct {
	Content []ContentItem
}

// GenerationBackend produces conversational replies for a context window.
type GenerationBackend interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResponse, error)
}
