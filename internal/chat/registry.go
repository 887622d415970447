// Package chat carries session events between WebSocket clients and the message pipeline.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/store"
)

// ErrSessionNotFound is returned for events on a session that was never created.
var ErrSessionNotFound = errors.New("session not found")

// ExecutorResolver returns the executor serving addr.
type ExecutorResolver interface {
	Executor(addr string) (domain.Executor, error)
}

// Entry is the in-memory state of one session. It is only touched while the
// registry holds the session lock.
type Entry struct {
	Session domain.Session
	// States holds unfinished or failed message states by message id.
	States map[string]domain.MessageState

	mu       sync.Mutex
	loaded   bool
	evicted  bool
	lastSeen time.Time
	conns    map[*websocket.Conn]struct{}
}

// Track records state, forgetting it once the message completes.
func (e *Entry) Track(state domain.MessageState) {
	if state.Message.ID == "" {
		return
	}
	if state.Status == domain.StatusCompleted {
		delete(e.States, state.Message.ID)
		return
	}
	e.States[state.Message.ID] = state
}

// Registry serializes access to sessions: one event in flight per session.
type Registry struct {
	mu        sync.Mutex
	entries   map[string]*Entry
	repo      store.Repository
	executors ExecutorResolver
	logger    *slog.Logger
}

// NewRegistry creates a registry backed by repo. executors may be nil when no
// filesystem executor is configured.
func NewRegistry(repo store.Repository, executors ExecutorResolver, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		entries:   make(map[string]*Entry),
		repo:      repo,
		executors: executors,
		logger:    logger,
	}
}

func (r *Registry) entry(sessionID string) *Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sessionID]
	if !ok {
		e = &Entry{
			States: make(map[string]domain.MessageState),
			conns:  make(map[*websocket.Conn]struct{}),
		}
		r.entries[sessionID] = e
	}
	return e
}

// lock returns the locked entry for sessionID, skipping entries evicted between
// lookup and lock.
func (r *Registry) lock(sessionID string) *Entry {
	for {
		e := r.entry(sessionID)
		e.mu.Lock()
		if !e.evicted {
			return e
		}
		e.mu.Unlock()
	}
}

// With runs fn with exclusive access to the session. The session is loaded on
// first use and persisted afterwards when fn changed its head.
func (r *Registry) With(ctx context.Context, sessionID string, fn func(e *Entry) error) error {
	e := r.lock(sessionID)
	defer e.mu.Unlock()
	e.lastSeen = time.Now()

	if !e.loaded {
		session, err := r.repo.GetSession(ctx, sessionID)
		if err != nil {
			return fmt.Errorf("load session %s: %w", sessionID, err)
		}
		if session == nil {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
		}
		e.Session = *session
		e.loaded = true
	}
	r.attachExecutor(e)

	head := e.Session.Head
	fnErr := fn(e)

	if e.Session.Head != head {
		e.Session.UpdatedAt = time.Now().UTC()
		if err := r.repo.UpsertSession(ctx, &e.Session); err != nil {
			r.logger.Error("Failed to persist session head", "error", err, "session_id", sessionID, "head", e.Session.Head)
			if fnErr == nil {
				return fmt.Errorf("persist session %s: %w", sessionID, err)
			}
		}
	}
	return fnErr
}

// attachExecutor resolves the session's executor for one event. The pool owns
// connection health, so the entry never keeps a client between events.
func (r *Registry) attachExecutor(e *Entry) {
	e.Session.Executor = nil
	if e.Session.ExecutorAddr == "" || r.executors == nil {
		return
	}
	exec, err := r.executors.Executor(e.Session.ExecutorAddr)
	if err != nil {
		r.logger.Warn("Filesystem executor unavailable",
			"session_id", e.Session.ID,
			"address", e.Session.ExecutorAddr,
			"error", err,
		)
		return
	}
	e.Session.Executor = exec
}

// Register adds a connection to the session's broadcast set.
func (r *Registry) Register(sessionID string, conn *websocket.Conn) {
	e := r.lock(sessionID)
	defer e.mu.Unlock()
	e.conns[conn] = struct{}{}
	e.lastSeen = time.Now()
	r.logger.Info("Chat connection registered", "session_id", sessionID, "connections", len(e.conns))
}

// Unregister removes a connection from the session's broadcast set.
func (r *Registry) Unregister(sessionID string, conn *websocket.Conn) {
	e := r.lock(sessionID)
	defer e.mu.Unlock()
	delete(e.conns, conn)
	e.lastSeen = time.Now()
	r.logger.Info("Chat connection unregistered", "session_id", sessionID, "connections", len(e.conns))
}

// Connections returns the open connections of an entry. Callers hold the entry lock.
func (e *Entry) Connections() []*websocket.Conn {
	out := make([]*websocket.Conn, 0, len(e.conns))
	for c := range e.conns {
		out = append(out, c)
	}
	return out
}

// Len returns the number of sessions held in memory.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Sweep evicts sessions idle for longer than ttl that have no open connection
// and no event in flight. It returns the number evicted.
func (r *Registry) Sweep(ttl time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	cutoff := time.Now().Add(-ttl)
	evicted := 0
	for id, e := range r.entries {
		if !e.mu.TryLock() {
			continue
		}
		if len(e.conns) == 0 && e.lastSeen.Before(cutoff) {
			e.evicted = true
			delete(r.entries, id)
			evicted++
		}
		e.mu.Unlock()
	}
	return evicted
}
