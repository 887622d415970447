package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/shsh-chat/internal/command"
	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/identity"
	"github.com/ashureev/shsh-chat/internal/permission"
)

const maxStartChatBody = 64 << 10

// RegisterPublicRoutes registers routes that do not need a session.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/health", h.Health)
	r.Post("/start-chat", h.StartChat)
	r.Get("/api/config", h.GetConfig)
}

// RegisterSessionRoutes registers routes that run behind the identity middleware.
func (h *Handler) RegisterSessionRoutes(r chi.Router) {
	r.Get("/api/session", h.GetSession)
	r.Get("/api/messages", h.GetMessages)
}

type startChatRequest struct {
	FSPath      string   `json:"fs_path"`
	Permissions []string `json:"permissions"`
}

// StartChat creates a session for a filesystem root and permission set.
func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	var req startChatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxStartChatBody)).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Permissions) == 0 {
		Error(w, http.StatusBadRequest, "at least one permission is required")
		return
	}
	perms, err := domain.ParsePermissions(strings.Join(req.Permissions, ","))
	if err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(perms) == 0 {
		Error(w, http.StatusBadRequest, "at least one permission is required")
		return
	}

	root := strings.TrimSpace(req.FSPath)
	if root == "" {
		root = h.defaults.Root
	}

	now := time.Now().UTC()
	session := &domain.Session{
		ID:             identity.NewSessionID(),
		StoreID:        h.defaults.StoreID,
		FilesystemRoot: root,
		Permissions:    perms,
		ExecutorAddr:   h.defaults.ExecutorAddr,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.repo.UpsertSession(r.Context(), session); err != nil {
		slog.Error("Failed to create session", "error", err)
		Error(w, http.StatusInternalServerError, "failed to create session")
		return
	}

	slog.Info("Chat started",
		"session_id", session.ID,
		"fs_root", session.FilesystemRoot,
		"permissions", session.Permissions.String(),
	)
	identity.SetSessionCookie(w, session.ID, h.isDev)
	JSON(w, http.StatusCreated, map[string]string{
		"session_id": session.ID,
		"url":        strings.TrimRight(h.frontendURL, "/") + "/chat?session_id=" + session.ID,
	})
}

// GetSession returns the current session.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil {
		slog.Error("Failed to get session", "error", err, "session_id", sessionID)
		Error(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	if session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	available := false
	if session.ExecutorAddr != "" && h.executors != nil {
		if exec, err := h.executors.Executor(session.ExecutorAddr); err == nil {
			available = true
			if hc, ok := exec.(interface{ Healthy() bool }); ok {
				available = hc.Healthy()
			}
		}
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"session_id":         session.ID,
		"head":               session.Head,
		"fs_root":            session.FilesystemRoot,
		"permissions":        session.Permissions.Sorted(),
		"executor_available": available,
		"created_at":         session.CreatedAt,
		"updated_at":         session.UpdatedAt,
	})
}

// GetMessages returns the session's message chain, oldest first.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	session, err := h.repo.GetSession(r.Context(), sessionID)
	if err != nil || session == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	msgs, err := h.history.History(r.Context(), *session)
	if err != nil {
		slog.Error("Failed to assemble history", "error", err, "session_id", sessionID, "head", session.Head)
		Error(w, http.StatusInternalServerError, "failed to load messages")
		return
	}
	JSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

// GetConfig returns the command vocabulary and defaults for the frontend.
func (h *Handler) GetConfig(w http.ResponseWriter, r *http.Request) {
	type op struct {
		Operation  domain.Operation  `json:"operation"`
		Permission domain.Permission `json:"permission"`
		Syntax     string            `json:"syntax"`
	}
	ops := make([]op, 0, len(command.Vocabulary))
	for _, u := range command.Vocabulary {
		p, _ := permission.Required(u.Operation)
		ops = append(ops, op{Operation: u.Operation, Permission: p, Syntax: u.Syntax()})
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"operations":          ops,
		"default_fs_root":     h.defaults.Root,
		"default_permissions": h.defaults.Permissions.Sorted(),
		"executor_configured": h.defaults.ExecutorAddr != "",
	})
}

// Health reports whether the store is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.repo.Ping(r.Context()); err != nil {
		JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unhealthy", "error": err.Error()})
		return
	}
	JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
