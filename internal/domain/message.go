// Package domain contains core domain types for the chat engine.
package domain

import "strings"

// Role identifies which participant authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Operation names a filesystem operation that can be requested from message text.
type Operation string

const (
	OpReadFile   Operation = "read-file"
	OpWriteFile  Operation = "write-file"
	OpListFiles  Operation = "list-files"
	OpCreateDir  Operation = "create-dir"
	OpDeleteFile Operation = "delete-file"
	OpEditFile   Operation = "edit-file"
	OpDeleteDir  Operation = "delete-dir"
)

// Operations lists every operation in the command vocabulary, in display order.
var Operations = []Operation{
	OpReadFile,
	OpWriteFile,
	OpListFiles,
	OpCreateDir,
	OpDeleteFile,
	OpEditFile,
	OpDeleteDir,
}

// Known reports whether op belongs to the command vocabulary.
func (op Operation) Known() bool {
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Command is a structured filesystem operation request extracted from message text.
type Command struct {
	Operation Operation `json:"operation"`
	Path      string    `json:"path"`
	Content   string    `json:"content,omitempty"`
	OldText   string    `json:"old_text,omitempty"`
	NewText   string    `json:"new_text,omitempty"`
}

// Result is the outcome of attempting one Command.
type Result struct {
	Success   bool      `json:"success"`
	Operation Operation `json:"operation"`
	Path      string    `json:"path"`
	Data      string    `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Message is one immutable turn in a conversation.
//
// ID is assigned by the record store and is never part of the stored payload.
// An empty Parent marks the first message of a chain.
type Message struct {
	ID       string    `json:"id,omitempty"`
	Role     Role      `json:"role"`
	Content  string    `json:"content"`
	Parent   string    `json:"parent,omitempty"`
	Commands []Command `json:"fs_commands,omitempty"`
	Results  []Result  `json:"fs_results,omitempty"`
}

// HasCommands returns true if the message carries at least one command.
func (m *Message) HasCommands() bool {
	return len(m.Commands) > 0
}

// HasResults returns true if the message carries execution results.
func (m *Message) HasResults() bool {
	return len(m.Results) > 0
}

// Preview returns the content collapsed to one line and cut to n runes, for logs.
func (m *Message) Preview(n int) string {
	s := []rune(strings.Join(strings.Fields(m.Content), " "))
	if len(s) <= n {
		return string(s)
	}
	return string(s[:n]) + "..."
}
