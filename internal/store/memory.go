package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// MemoryStore is an in-process Backend and Repository. Ids are sequential
// decimal strings starting at "1".
type MemoryStore struct {
	mu       sync.RWMutex
	records  [][]byte
	sessions map[string]domain.Session
}

// NewMemory creates an empty in-memory store.
func NewMemory() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]domain.Session)}
}

// Do serves a store protocol request.
func (m *MemoryStore) Do(ctx context.Context, req Request) (Response, error) {
	if err := ctx.Err(); err != nil {
		return Response{}, err
	}

	switch req.Action {
	case ActionPut:
		if req.Value == nil {
			return Response{Status: StatusError, Error: "empty record"}, nil
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		m.records = append(m.records, append([]byte(nil), req.Value...))
		return Response{Status: StatusOK, Key: strconv.Itoa(len(m.records))}, nil
	case ActionGet:
		n, err := strconv.Atoi(req.Key)
		m.mu.RLock()
		defer m.mu.RUnlock()
		if err != nil || n < 1 || n > len(m.records) {
			return Response{Status: StatusError, Error: fmt.Sprintf("record %s not found", req.Key)}, nil
		}
		return Response{Status: StatusOK, Key: req.Key, Value: append([]byte(nil), m.records[n-1]...)}, nil
	default:
		return Response{Status: StatusError, Error: fmt.Sprintf("unknown action %q", req.Action)}, nil
	}
}

// Len returns the number of records appended so far.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.records)
}

// GetSession retrieves a session by id.
func (m *MemoryStore) GetSession(_ context.Context, sessionID string) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	session.Permissions = append(domain.Permissions(nil), session.Permissions...)
	return &session, nil
}

// UpsertSession creates or updates a session.
func (m *MemoryStore) UpsertSession(_ context.Context, session *domain.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *session
	copied.Executor = nil
	copied.Permissions = append(domain.Permissions(nil), session.Permissions...)
	m.sessions[session.ID] = copied
	return nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }
func (m *MemoryStore) Close() error               { return nil }

var (
	_ Backend    = (*MemoryStore)(nil)
	_ Repository = (*MemoryStore)(nil)
)
