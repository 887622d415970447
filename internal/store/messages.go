package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// SaveMessage serializes msg without its id, appends it and returns the new id.
func (a *Adapter) SaveMessage(ctx context.Context, msg domain.Message) (string, error) {
	msg.ID = ""
	data, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("%w: encode message: %w", ErrPersistenceFailed, err)
	}
	return a.Put(ctx, data)
}

// LoadMessage reads and decodes the message stored under id, stamping its id.
func (a *Adapter) LoadMessage(ctx context.Context, id string) (domain.Message, error) {
	data, err := a.Get(ctx, id)
	if err != nil {
		return domain.Message{}, err
	}
	var msg domain.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.Message{}, fmt.Errorf("%w: decode message %s: %w", ErrPersistenceFailed, id, err)
	}
	msg.ID = id
	return msg, nil
}
