package chat

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/identity"
	"github.com/ashureev/shsh-chat/internal/pipeline"
)

const writeTimeout = 10 * time.Second

// Handler serves chat sessions over WebSocket.
type Handler struct {
	registry      *Registry
	pipeline      *pipeline.Pipeline
	convlog       ConversationLogger
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewHandler creates a WebSocket chat handler.
func NewHandler(registry *Registry, p *pipeline.Pipeline, convlog ConversationLogger, allowedOrigin string, isDev bool, logger *slog.Logger) *Handler {
	if convlog == nil {
		convlog = noopConversationLogger{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		registry:      registry,
		pipeline:      p,
		convlog:       convlog,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sessionID := identity.SessionIDFromContext(r.Context())
	if sessionID == "" {
		http.Error(w, "missing session", http.StatusBadRequest)
		return
	}
	h.logger.Info("WebSocket connection request", "session_id", sessionID, "ip", identity.IPFromRequest(r))

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "session_id", sessionID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "session_id", sessionID)
		}
	}()

	h.registry.Register(sessionID, ws)
	defer h.registry.Unregister(sessionID, ws)

	h.readLoop(r.Context(), ws, sessionID)
	h.logger.Info("Chat session ended", "session_id", sessionID)
}

func (h *Handler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

// readLoop handles one event at a time until the client goes away.
func (h *Handler) readLoop(ctx context.Context, ws *websocket.Conn, sessionID string) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				h.logger.Debug("WebSocket closed by client", "session_id", sessionID)
			} else if !errors.Is(err, context.Canceled) {
				h.logger.Warn("WebSocket read error", "error", err, "session_id", sessionID)
			}
			return
		}

		var ev inbound
		if err := json.Unmarshal(data, &ev); err != nil {
			h.reply(ws, outbound{Type: TypeError, Error: "malformed event"})
			continue
		}

		if err := h.handle(ctx, ws, sessionID, ev); err != nil {
			h.logger.Warn("Chat event failed", "type", ev.Type, "session_id", sessionID, "error", err)
			h.reply(ws, outbound{Type: TypeError, Error: err.Error()})
		}
	}
}

func (h *Handler) handle(ctx context.Context, ws *websocket.Conn, sessionID string, ev inbound) error {
	switch ev.Type {
	case TypeSendMessage:
		return h.registry.With(ctx, sessionID, func(e *Entry) error {
			n := &broadcaster{h: h, entry: e}
			h.convlog.Log(ConversationLogEvent{
				SessionID:  sessionID,
				Direction:  "inbound",
				EventType:  EventUserMessage,
				ContentRaw: ev.Content,
				Meta:       map[string]any{"commands": len(ev.commands())},
			})
			out, err := h.pipeline.Send(ctx, e.Session, ev.Content, ev.commands(), n)
			e.Session = out.Session
			h.logOutcome(sessionID, out)
			return stepError(out, err)
		})

	case TypeRetryMessage:
		if ev.MessageID == "" {
			return errors.New("messageId is required")
		}
		return h.registry.With(ctx, sessionID, func(e *Entry) error {
			n := &broadcaster{h: h, entry: e}
			var prior *domain.MessageState
			if st, ok := e.States[ev.MessageID]; ok {
				prior = &st
			}
			h.convlog.Log(ConversationLogEvent{
				SessionID: sessionID,
				MessageID: ev.MessageID,
				Direction: "inbound",
				EventType: EventRetry,
			})
			out, err := h.pipeline.Retry(ctx, e.Session, ev.MessageID, prior, n)
			e.Session = out.Session
			h.logOutcome(sessionID, out)
			return stepError(out, err)
		})

	case TypeGetMessages:
		return h.registry.With(ctx, sessionID, func(e *Entry) error {
			msgs, err := h.pipeline.History(ctx, e.Session)
			if err != nil {
				return err
			}
			h.reply(ws, historyEvent{Type: TypeMessageUpdate, Messages: msgs})
			return nil
		})

	case TypePing:
		h.reply(ws, outbound{Type: TypePong})
		return nil

	default:
		return errors.New("unknown event type " + ev.Type)
	}
}

// stepError reports errors raised before any message state existed. Later
// failures already reached the client as a message_state_update.
func stepError(out pipeline.Outcome, err error) error {
	if err != nil && out.State.Status == "" {
		return err
	}
	return nil
}

func (h *Handler) logOutcome(sessionID string, out pipeline.Outcome) {
	switch {
	case out.Reply != nil:
		h.convlog.Log(ConversationLogEvent{
			SessionID:  sessionID,
			MessageID:  out.Reply.ID,
			Direction:  "outbound",
			EventType:  EventReply,
			ContentRaw: out.Reply.Content,
			Meta:       map[string]any{"commands": len(out.Reply.Commands)},
		})
	case out.State.Status == domain.StatusFailed || (out.State.Status == domain.StatusPending && out.State.LastError != ""):
		h.convlog.Log(ConversationLogEvent{
			SessionID: sessionID,
			MessageID: out.State.Message.ID,
			Direction: "outbound",
			EventType: EventStateFailure,
			Meta: map[string]any{
				"status":     out.State.Status,
				"retries":    out.State.Retries,
				"last_error": out.State.LastError,
			},
		})
	}
}

func (h *Handler) reply(ws *websocket.Conn, ev any) {
	if err := writeJSON(ws, ev); err != nil {
		h.logger.Debug("Failed to write chat event", "error", err)
	}
}

func writeJSON(ws *websocket.Conn, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	return ws.Write(ctx, websocket.MessageText, data)
}

// broadcaster forwards pipeline progress to every connection of a session and
// keeps the entry's transient states current.
type broadcaster struct {
	h     *Handler
	entry *Entry
	last  string
}

func (b *broadcaster) StateChanged(state domain.MessageState) {
	// a re-save gives the message a new id; drop the state kept under the old one
	if b.last != "" && b.last != state.Message.ID {
		delete(b.entry.States, b.last)
	}
	b.last = state.Message.ID
	b.entry.Track(state)
	b.send(outbound{Type: TypeMessageStateUpdate, MessageState: &state})
}

func (b *broadcaster) MessageSaved(msg domain.Message) {
	b.send(outbound{Type: TypeMessageUpdate, Message: &msg})
}

func (b *broadcaster) send(ev outbound) {
	for _, conn := range b.entry.Connections() {
		b.h.reply(conn, ev)
	}
}
