// Package identity resolves the chat session a request belongs to.
package identity

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/store"
)

const (
	SessionCookieName = "shsh_chat_session"
	SessionHeaderName = "X-Session-ID"
	sessionCookieAge  = 30 * 24 * time.Hour
)

type contextKey int

const sessionIDKey contextKey = iota

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// Defaults are applied to sessions created implicitly by the middleware.
type Defaults struct {
	StoreID      string
	Root         string
	Permissions  domain.Permissions
	ExecutorAddr string
}

// SessionIDFromContext extracts the session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// WithSessionID returns a context carrying sessionID.
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

func isValidSessionID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// sessionIDFromRequest looks at the header, the query string and the cookie, in that order.
func sessionIDFromRequest(r *http.Request) string {
	candidates := []string{
		r.Header.Get(SessionHeaderName),
		r.URL.Query().Get("session_id"),
	}
	if c, err := r.Cookie(SessionCookieName); err == nil {
		candidates = append(candidates, c.Value)
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c != "" && isValidSessionID(c) {
			return c
		}
	}
	return ""
}

// SetSessionCookie remembers sessionID in the browser.
func SetSessionCookie(w http.ResponseWriter, sessionID string, isDev bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		MaxAge:   int(sessionCookieAge.Seconds()),
		Expires:  time.Now().Add(sessionCookieAge),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   !isDev,
	})
}

// EnsureSession returns the stored session for sessionID, creating it from
// defaults when it does not exist yet.
func EnsureSession(ctx context.Context, repo store.Repository, sessionID string, defaults Defaults) (*domain.Session, error) {
	session, err := repo.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	if session != nil {
		return session, nil
	}

	now := time.Now().UTC()
	session = &domain.Session{
		ID:             sessionID,
		StoreID:        defaults.StoreID,
		FilesystemRoot: defaults.Root,
		Permissions:    defaults.Permissions.Sorted(),
		ExecutorAddr:   defaults.ExecutorAddr,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := repo.UpsertSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}
	slog.Info("Session created", "session_id", sessionID, "fs_root", session.FilesystemRoot)
	return session, nil
}

// Middleware injects the session ID, creating a session when the request has none.
func Middleware(repo store.Repository, defaults Defaults, isDev bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sessionID := sessionIDFromRequest(r)
			if sessionID == "" {
				sessionID = NewSessionID()
			}

			if _, err := EnsureSession(r.Context(), repo, sessionID, defaults); err != nil {
				slog.Error("Failed to initialize session", "error", err, "session_id", sessionID)
				http.Error(w, `{"error":"failed to initialize session"}`, http.StatusInternalServerError)
				return
			}
			SetSessionCookie(w, sessionID, isDev)

			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sessionID)))
		})
	}
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
