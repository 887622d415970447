// Package history reconstructs conversation history from a chain pointer.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// ErrResolution is returned when a message in the chain cannot be loaded or decoded.
var ErrResolution = errors.New("history resolution failed")

// maxDepth bounds a walk so a corrupted chain cannot loop forever.
const maxDepth = 100000

// MessageLoader loads a stored message by id and stamps the id on it.
type MessageLoader interface {
	LoadMessage(ctx context.Context, id string) (domain.Message, error)
}

// Assembler walks parent links back from a head id.
type Assembler struct {
	loader MessageLoader
}

// NewAssembler creates an Assembler reading through loader.
func NewAssembler(loader MessageLoader) *Assembler {
	return &Assembler{loader: loader}
}

// Assemble returns the chain ending at head, oldest first. An empty head yields
// an empty history. Any unloadable link fails the whole call.
func (a *Assembler) Assemble(ctx context.Context, head string) ([]domain.Message, error) {
	if head == "" {
		return []domain.Message{}, nil
	}

	var chain []domain.Message
	seen := make(map[string]struct{})
	for id := head; id != ""; {
		if _, ok := seen[id]; ok || len(chain) >= maxDepth {
			return nil, fmt.Errorf("%w: cycle at %s", ErrResolution, id)
		}
		seen[id] = struct{}{}

		msg, err := a.loader.LoadMessage(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("%w: message %s: %w", ErrResolution, id, err)
		}
		chain = append(chain, msg)
		id = msg.Parent
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain, nil
}
