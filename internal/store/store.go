// Package store provides the append-only record store and session persistence.
package store

import (
	"context"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// Action selects a store protocol operation.
type Action string

const (
	ActionGet Action = "get"
	ActionPut Action = "put"
)

// Status is the outcome reported by the backing store.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Request is one store protocol request. Key is used by Get, Value by Put.
type Request struct {
	Action Action
	Key    string
	Value  []byte
}

// Response is the store's answer. Put returns the assigned id in Key; Get returns bytes in Value.
type Response struct {
	Status Status
	Key    string
	Value  []byte
	Error  string
}

// Backend serves store protocol requests. Records are never updated or deleted.
type Backend interface {
	Do(ctx context.Context, req Request) (Response, error)
}

// Repository persists session state: the head pointer, root, permissions, executor address.
type Repository interface {
	// GetSession retrieves a session by id. Returns nil, nil when it does not exist.
	GetSession(ctx context.Context, sessionID string) (*domain.Session, error)

	// UpsertSession creates or updates a session row.
	UpsertSession(ctx context.Context, session *domain.Session) error

	// Ping verifies database connectivity and returns an error if the database is unreachable.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
