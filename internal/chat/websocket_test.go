package chat

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/shsh-chat/internal/dispatch"
	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/generate"
	"github.com/ashureev/shsh-chat/internal/identity"
	"github.com/ashureev/shsh-chat/internal/pipeline"
	"github.com/ashureev/shsh-chat/internal/store"
)

type failingBackend struct{ err error }

func (f failingBackend) Generate(context.Context, domain.GenerationRequest) (*domain.GenerationResponse, error) {
	return nil, f.err
}

type wireEvent struct {
	Type         string               `json:"type"`
	Messages     []domain.Message     `json:"messages"`
	Message      *domain.Message      `json:"message"`
	MessageState *domain.MessageState `json:"message_state"`
	Error        string               `json:"error"`
}

func startServer(t *testing.T, backend domain.GenerationBackend) (*websocket.Conn, *store.MemoryStore) {
	t.Helper()
	srv, mem := newTestServer(t, backend)
	return dial(t, srv, "s1"), mem
}

func newTestServer(t *testing.T, backend domain.GenerationBackend) (*httptest.Server, *store.MemoryStore) {
	t.Helper()
	mem := store.NewMemory()
	adapter := store.NewAdapter(mem, time.Second)
	p := pipeline.New(adapter, dispatch.New(time.Second, nil), generate.New(backend, generate.DefaultConfig(), nil), nil)
	reg := NewRegistry(mem, nil, nil)
	h := NewHandler(reg, p, nil, "", true, nil)

	defaults := identity.Defaults{StoreID: "default", Root: "/srv", Permissions: domain.Permissions{domain.PermRead}}
	srv := httptest.NewServer(identity.Middleware(mem, defaults, true)(h))
	t.Cleanup(srv.Close)
	return srv, mem
}

func dial(t *testing.T, srv *httptest.Server, sessionID string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?session_id=" + sessionID
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, data))
}

func read(t *testing.T, conn *websocket.Conn) wireEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	require.NoError(t, err)
	var ev wireEvent
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

// readUntilTerminal collects events up to a Completed or Failed state update.
func readUntilTerminal(t *testing.T, conn *websocket.Conn) []wireEvent {
	t.Helper()
	var events []wireEvent
	for {
		ev := read(t, conn)
		events = append(events, ev)
		if ev.Type == TypeMessageStateUpdate && ev.MessageState.Status.Terminal() {
			return events
		}
		if ev.Type == TypeMessageStateUpdate && ev.MessageState.Status == domain.StatusPending && ev.MessageState.LastError != "" {
			return events
		}
	}
}

func TestWebSocketSendMessage(t *testing.T) {
	conn, mem := startServer(t, generate.NewEchoBackend())

	send(t, conn, map[string]any{"type": TypeSendMessage, "content": "hello"})
	events := readUntilTerminal(t, conn)

	var types []string
	var statuses []domain.Status
	for _, ev := range events {
		types = append(types, ev.Type)
		if ev.MessageState != nil {
			statuses = append(statuses, ev.MessageState.Status)
		}
	}
	assert.Equal(t, []string{
		TypeMessageUpdate,
		TypeMessageStateUpdate,
		TypeMessageStateUpdate,
		TypeMessageUpdate,
		TypeMessageStateUpdate,
	}, types)
	assert.Equal(t, []domain.Status{domain.StatusPending, domain.StatusGeneratingResponse, domain.StatusCompleted}, statuses)

	reply := events[3].Message
	require.NotNil(t, reply)
	assert.Equal(t, domain.RoleAssistant, reply.Role)
	assert.Equal(t, "1", reply.Parent)
	assert.Contains(t, reply.Content, "hello")

	send(t, conn, map[string]any{"type": TypeGetMessages})
	ev := read(t, conn)
	assert.Equal(t, TypeMessageUpdate, ev.Type)
	require.Len(t, ev.Messages, 2)
	assert.Equal(t, "1", ev.Messages[0].ID)
	assert.Equal(t, "2", ev.Messages[1].ID)

	session, err := mem.GetSession(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "2", session.Head)
}

func TestWebSocketCommandsAreDeniedWithoutPermission(t *testing.T) {
	for _, key := range []string{"commands", "fs_commands"} {
		t.Run(key, func(t *testing.T) {
			conn, _ := startServer(t, generate.NewEchoBackend())

			send(t, conn, map[string]any{
				"type":    TypeSendMessage,
				"content": "write it",
				key:       []domain.Command{{Operation: domain.OpWriteFile, Path: "x.txt", Content: "y"}},
			})
			events := readUntilTerminal(t, conn)

			var resaved *domain.Message
			for _, ev := range events {
				if ev.Type == TypeMessageUpdate && ev.Message != nil && ev.Message.HasResults() {
					resaved = ev.Message
					break
				}
			}
			require.NotNil(t, resaved)
			require.Len(t, resaved.Results, 1)
			assert.False(t, resaved.Results[0].Success)
			assert.Contains(t, resaved.Results[0].Error, "not permitted")
		})
	}
}

func TestWebSocketRetryOfAnotherSessionsMessage(t *testing.T) {
	srv, mem := newTestServer(t, generate.NewEchoBackend())

	connA := dial(t, srv, "session-a")
	send(t, connA, map[string]any{"type": TypeSendMessage, "content": "session A secret"})
	events := readUntilTerminal(t, connA)
	foreign := events[len(events)-1].MessageState.Message.ID
	require.NotEmpty(t, foreign)

	connB := dial(t, srv, "session-b")
	send(t, connB, map[string]any{"type": TypeRetryMessage, "messageId": foreign})
	ev := read(t, connB)
	assert.Equal(t, TypeError, ev.Type)
	assert.Contains(t, ev.Error, "not in session history")

	send(t, connB, map[string]any{"type": TypeGetMessages})
	ev = read(t, connB)
	assert.Equal(t, TypeMessageUpdate, ev.Type)
	assert.Empty(t, ev.Messages)

	session, err := mem.GetSession(context.Background(), "session-b")
	require.NoError(t, err)
	assert.Empty(t, session.Head)
}

func TestWebSocketTransientFailureThenRetry(t *testing.T) {
	conn, _ := startServer(t, failingBackend{err: errors.New("429 Too Many Requests")})

	send(t, conn, map[string]any{"type": TypeSendMessage, "content": "hi"})
	events := readUntilTerminal(t, conn)
	last := events[len(events)-1].MessageState
	require.NotNil(t, last)
	assert.Equal(t, domain.StatusPending, last.Status)
	assert.Equal(t, 1, last.Retries)
	assert.Contains(t, last.LastError, "Too Many Requests")

	send(t, conn, map[string]any{"type": TypeRetryMessage, "messageId": last.Message.ID})
	events = readUntilTerminal(t, conn)
	last = events[len(events)-1].MessageState
	assert.Equal(t, domain.StatusPending, last.Status)
	assert.Equal(t, 2, last.Retries)
}

func TestWebSocketErrors(t *testing.T) {
	conn, _ := startServer(t, generate.NewEchoBackend())

	send(t, conn, map[string]any{"type": "bogus"})
	ev := read(t, conn)
	assert.Equal(t, TypeError, ev.Type)
	assert.Contains(t, ev.Error, "unknown event type")

	send(t, conn, map[string]any{"type": TypeRetryMessage, "messageId": "99"})
	ev = read(t, conn)
	assert.Equal(t, TypeError, ev.Type)
	assert.Contains(t, ev.Error, "not in session history")

	send(t, conn, map[string]any{"type": TypeSendMessage, "content": ""})
	ev = read(t, conn)
	assert.Equal(t, TypeError, ev.Type)

	send(t, conn, map[string]any{"type": TypePing})
	ev = read(t, conn)
	assert.Equal(t, TypePong, ev.Type)
}
