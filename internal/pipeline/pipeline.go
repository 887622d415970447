// Package pipeline drives one message through command execution and reply generation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/shsh-chat/internal/command"
	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/history"
	"github.com/ashureev/shsh-chat/internal/retry"
)

var (
	// ErrEmptyMessage is returned by Send when there is neither content nor commands.
	ErrEmptyMessage = errors.New("message has no content")
	// ErrUnknownMessage is returned by Retry for an id outside the session's chain.
	ErrUnknownMessage = errors.New("message not in session history")
)

// MessageStore saves and loads immutable message records.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg domain.Message) (string, error)
	LoadMessage(ctx context.Context, id string) (domain.Message, error)
}

// Dispatcher executes commands for a session.
type Dispatcher interface {
	Dispatch(ctx context.Context, commands []domain.Command, session domain.Session) []domain.Result
}

// Generator produces a reply for an assembled history.
type Generator interface {
	Generate(ctx context.Context, history []domain.Message, session domain.Session) (string, error)
}

// Notifier receives progress events while a message is processed.
type Notifier interface {
	StateChanged(state domain.MessageState)
	MessageSaved(msg domain.Message)
}

type nopNotifier struct{}

func (nopNotifier) StateChanged(domain.MessageState) {}
func (nopNotifier) MessageSaved(domain.Message)      {}

// Outcome is the result of one invocation. Session carries the updated head.
type Outcome struct {
	Session domain.Session
	State   domain.MessageState
	Reply   *domain.Message
}

// Pipeline processes messages. It holds no per-session state.
type Pipeline struct {
	store      MessageStore
	assembler  *history.Assembler
	dispatcher Dispatcher
	generator  Generator
	logger     *slog.Logger
}

// New creates a Pipeline.
func New(store MessageStore, dispatcher Dispatcher, generator Generator, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:      store,
		assembler:  history.NewAssembler(store),
		dispatcher: dispatcher,
		generator:  generator,
		logger:     logger,
	}
}

// History returns the chain ending at the session head, oldest first.
func (p *Pipeline) History(ctx context.Context, session domain.Session) ([]domain.Message, error) {
	return p.assembler.Assemble(ctx, session.Head)
}

// Send stores a new user message after the current head and processes it.
// When commands is nil the content is parsed for command blocks.
func (p *Pipeline) Send(ctx context.Context, session domain.Session, content string, commands []domain.Command, n Notifier) (Outcome, error) {
	if n == nil {
		n = nopNotifier{}
	}
	if commands == nil {
		commands = command.Parse(content)
	}
	if content == "" && len(commands) == 0 {
		return Outcome{Session: session}, ErrEmptyMessage
	}

	msg := domain.Message{
		Role:    domain.RoleUser,
		Content: content,
		Parent:  session.Head,
	}
	if len(commands) > 0 {
		msg.Commands = commands
	}

	state := domain.NewMessageState(msg)
	id, err := p.store.SaveMessage(ctx, msg)
	if err != nil {
		return p.fail(session, state, n, err)
	}
	msg.ID = id
	session.Head = id
	state.Message = msg
	n.MessageSaved(msg)
	n.StateChanged(state)

	return p.Process(ctx, session, state, n)
}

// Retry repoints the head at a stored message and runs it through the pipeline
// again. Only messages reachable from the session head can be retried. prior
// carries the retry count from an earlier transient failure.
func (p *Pipeline) Retry(ctx context.Context, session domain.Session, messageID string, prior *domain.MessageState, n Notifier) (Outcome, error) {
	if n == nil {
		n = nopNotifier{}
	}
	msg, err := p.lookup(ctx, session, messageID)
	if err != nil {
		return Outcome{Session: session}, err
	}

	state := domain.NewMessageState(msg)
	if prior != nil {
		state.Retries = prior.Retries
	}
	session.Head = msg.ID
	n.StateChanged(state)

	p.logger.Info("Retrying message",
		"session_id", session.ID,
		"message_id", msg.ID,
		"preview", msg.Preview(80),
		"retries", state.Retries,
	)
	return p.Process(ctx, session, state, n)
}

// lookup finds messageID in the chain ending at the session head.
func (p *Pipeline) lookup(ctx context.Context, session domain.Session, messageID string) (domain.Message, error) {
	chain, err := p.assembler.Assemble(ctx, session.Head)
	if err != nil {
		return domain.Message{}, fmt.Errorf("load session history: %w", err)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		if chain[i].ID == messageID {
			return chain[i], nil
		}
	}
	return domain.Message{}, fmt.Errorf("%w: %s", ErrUnknownMessage, messageID)
}

// Process runs state.Message to Completed or to a classified failure. The
// message must already be stored and be the session head.
func (p *Pipeline) Process(ctx context.Context, session domain.Session, state domain.MessageState, n Notifier) (Outcome, error) {
	if n == nil {
		n = nopNotifier{}
	}
	start := time.Now()
	msg := state.Message

	if msg.HasCommands() {
		state.Status = domain.StatusProcessingCommands
		n.StateChanged(state)

		updated := msg
		updated.ID = ""
		updated.Results = p.dispatcher.Dispatch(ctx, msg.Commands, session)

		id, err := p.store.SaveMessage(ctx, updated)
		if err != nil {
			return p.fail(session, state, n, err)
		}
		updated.ID = id
		session.Head = id
		msg = updated
		state.Message = msg
		n.MessageSaved(msg)
	}

	if msg.Role != domain.RoleUser {
		state.Status = domain.StatusCompleted
		n.StateChanged(state)
		return Outcome{Session: session, State: state}, nil
	}

	state.Status = domain.StatusGeneratingResponse
	n.StateChanged(state)

	hist, err := p.assembler.Assemble(ctx, session.Head)
	if err != nil {
		return p.fail(session, state, n, err)
	}

	text, err := p.generator.Generate(ctx, hist, session)
	if err != nil {
		return p.fail(session, state, n, err)
	}

	reply := domain.Message{
		Role:    domain.RoleAssistant,
		Content: text,
		Parent:  msg.ID,
	}
	if cmds := command.Parse(text); len(cmds) > 0 {
		reply.Commands = cmds
		reply.Results = p.dispatcher.Dispatch(ctx, cmds, session)
	}

	id, err := p.store.SaveMessage(ctx, reply)
	if err != nil {
		return p.fail(session, state, n, err)
	}
	reply.ID = id
	session.Head = id
	n.MessageSaved(reply)

	state.Status = domain.StatusCompleted
	n.StateChanged(state)

	p.logger.Info("Message processed",
		"session_id", session.ID,
		"message_id", msg.ID,
		"reply_id", reply.ID,
		"reply_preview", reply.Preview(80),
		"reply_commands", len(reply.Commands),
		"duration", time.Since(start),
	)
	return Outcome{Session: session, State: state, Reply: &reply}, nil
}

func (p *Pipeline) fail(session domain.Session, state domain.MessageState, n Notifier, err error) (Outcome, error) {
	state = retry.Classify(state, err.Error())
	n.StateChanged(state)

	p.logger.Warn("Message processing failed",
		"session_id", session.ID,
		"message_id", state.Message.ID,
		"status", state.Status,
		"retries", state.Retries,
		"error", err,
	)
	return Outcome{Session: session, State: state}, err
}
