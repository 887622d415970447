package chat

import "github.com/ashureev/shsh-chat/internal/domain"

// Inbound event types.
const (
	TypeSendMessage  = "send_message"
	TypeRetryMessage = "retry_message"
	TypeGetMessages  = "get_messages"
	TypePing         = "ping"
)

// Outbound event types.
const (
	TypeMessageUpdate      = "message_update"
	TypeMessageStateUpdate = "message_state_update"
	TypeError              = "error"
	TypePong               = "pong"
)

// inbound is a client event. Browser clients send commands as fs_commands.
type inbound struct {
	Type       string           `json:"type"`
	Content    string           `json:"content,omitempty"`
	Commands   []domain.Command `json:"commands,omitempty"`
	FSCommands []domain.Command `json:"fs_commands,omitempty"`
	MessageID  string           `json:"messageId,omitempty"`
}

// commands returns the explicit command list, nil when the client sent none.
func (ev inbound) commands() []domain.Command {
	if ev.Commands != nil {
		return ev.Commands
	}
	return ev.FSCommands
}

// outbound is a server event. Exactly one payload field is set per type.
type outbound struct {
	Type         string               `json:"type"`
	Message      *domain.Message      `json:"message,omitempty"`
	MessageState *domain.MessageState `json:"message_state,omitempty"`
	Error        string               `json:"error,omitempty"`
}

// historyEvent answers get_messages with the full chain, oldest first.
type historyEvent struct {
	Type     string           `json:"type"`
	Messages []domain.Message `json:"messages"`
}
