package domain

// Status is the processing status of a message within one pipeline invocation.
type Status string

const (
	StatusPending            Status = "Pending"
	StatusProcessingCommands Status = "ProcessingCommands"
	StatusGeneratingResponse Status = "GeneratingResponse"
	StatusCompleted          Status = "Completed"
	StatusFailed             Status = "Failed"
)

// Terminal reports whether s ends a pipeline invocation.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// MessageState wraps a Message with transient processing state. It is never persisted.
type MessageState struct {
	Message   Message `json:"message"`
	Status    Status  `json:"status"`
	Retries   int     `json:"retries"`
	LastError string  `json:"last_error,omitempty"`
}

// NewMessageState returns a Pending state for msg.
func NewMessageState(msg Message) MessageState {
	return MessageState{Message: msg, Status: StatusPending}
}
