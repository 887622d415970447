package chat

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationLoggerWritesPerSessionNDJSON(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	logger, err := NewConversationLogger(ConversationLogConfig{
		Enabled:   true,
		Dir:       dir,
		QueueSize: 16,
	}, slog.Default())
	require.NoError(t, err)

	logger.Log(ConversationLogEvent{
		SessionID:  "sess-1",
		Direction:  "inbound",
		EventType:  EventUserMessage,
		ContentRaw: "list   the\nfiles",
	})
	logger.Log(ConversationLogEvent{
		SessionID: "sess-1",
		Direction: "outbound",
		EventType: EventReply,
		MessageID: "2",
	})
	require.NoError(t, logger.Close())

	data, err := os.ReadFile(filepath.Join(dir, "sess-1.ndjson"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)

	var got ConversationLogEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, "list   the\nfiles", got.ContentRaw)
	assert.Equal(t, "list the files", got.Content)
	assert.NotEmpty(t, got.Timestamp)
	assert.NotEmpty(t, got.EventID)
}

func TestConversationLoggerDisabled(t *testing.T) {
	t.Parallel()

	logger, err := NewConversationLogger(ConversationLogConfig{Enabled: false}, nil)
	require.NoError(t, err)
	logger.Log(ConversationLogEvent{SessionID: "x"})
	require.NoError(t, logger.Close())
}

func TestCleanForReadabilityStripsANSI(t *testing.T) {
	t.Parallel()

	clean := cleanForReadability("\x1b[31merror\x1b[0m plain")
	assert.NotContains(t, clean, "\x1b[31m")
	assert.Contains(t, clean, "error plain")
}

func TestSafeFileName(t *testing.T) {
	t.Parallel()

	assert.NotContains(t, safeFileName("../../etc/passwd"), "/")
	assert.Equal(t, "unknown", safeFileName(""))
}
