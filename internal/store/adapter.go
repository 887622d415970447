package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrPersistenceFailed is returned when the store reports a failure or a malformed answer.
var ErrPersistenceFailed = errors.New("persistence failed")

// Adapter gives opaque put/get access to a Backend.
type Adapter struct {
	backend Backend
	timeout time.Duration
}

// NewAdapter wraps backend. A zero timeout leaves calls unbounded.
func NewAdapter(backend Backend, timeout time.Duration) *Adapter {
	return &Adapter{backend: backend, timeout: timeout}
}

// Put appends value and returns the id assigned by the store.
func (a *Adapter) Put(ctx context.Context, value []byte) (string, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.backend.Do(ctx, Request{Action: ActionPut, Value: value})
	if err != nil {
		return "", fmt.Errorf("%w: put: %w", ErrPersistenceFailed, err)
	}
	if resp.Status != StatusOK {
		return "", fmt.Errorf("%w: put: store status %q: %s", ErrPersistenceFailed, resp.Status, resp.Error)
	}
	if resp.Key == "" {
		return "", fmt.Errorf("%w: put: store returned no id", ErrPersistenceFailed)
	}
	return resp.Key, nil
}

// Get returns the bytes stored under id.
func (a *Adapter) Get(ctx context.Context, id string) ([]byte, error) {
	ctx, cancel := a.withTimeout(ctx)
	defer cancel()

	resp, err := a.backend.Do(ctx, Request{Action: ActionGet, Key: id})
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %w", ErrPersistenceFailed, id, err)
	}
	if resp.Status != StatusOK {
		return nil, fmt.Errorf("%w: get %s: store status %q: %s", ErrPersistenceFailed, id, resp.Status, resp.Error)
	}
	if resp.Value == nil {
		return nil, fmt.Errorf("%w: get %s: store returned no value", ErrPersistenceFailed, id)
	}
	return resp.Value, nil
}

func (a *Adapter) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, a.timeout)
}
