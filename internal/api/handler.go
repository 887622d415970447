// Package api provides HTTP handlers for the chat REST API.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/identity"
	"github.com/ashureev/shsh-chat/internal/store"
)

// HistoryReader assembles the message chain of a session.
type HistoryReader interface {
	History(ctx context.Context, session domain.Session) ([]domain.Message, error)
}

// ExecutorProber checks whether an executor address is reachable.
type ExecutorProber interface {
	Executor(addr string) (domain.Executor, error)
}

// Handler provides common handler utilities.
type Handler struct {
	repo        store.Repository
	history     HistoryReader
	executors   ExecutorProber
	defaults    identity.Defaults
	frontendURL string
	isDev       bool
}

// NewHandler creates a new Handler with common dependencies. executors may be nil.
func NewHandler(repo store.Repository, history HistoryReader, executors ExecutorProber, defaults identity.Defaults, frontendURL string, isDev bool) *Handler {
	return &Handler{
		repo:        repo,
		history:     history,
		executors:   executors,
		defaults:    defaults,
		frontendURL: frontendURL,
		isDev:       isDev,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}
