// Package dispatch executes permitted commands against a session's filesystem executor.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/permission"
)

// Per-command failure kinds. They are rendered into Result.Error and never abort a batch.
var (
	ErrPermissionDenied        = errors.New("not permitted")
	ErrExecutorUnavailable     = errors.New("executor unavailable")
	ErrExecutorRequestFailed   = errors.New("executor request failed")
	ErrExecutorResponseInvalid = errors.New("executor response invalid")
)

// Dispatcher runs commands one at a time, in order.
type Dispatcher struct {
	timeout time.Duration
	logger  *slog.Logger
}

// New creates a Dispatcher. timeout bounds each executor call; zero means unbounded.
func New(timeout time.Duration, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{timeout: timeout, logger: logger}
}

// Resolve maps path onto root. Absolute paths pass through; "." is root itself.
func Resolve(root, path string) string {
	if strings.HasPrefix(path, "/") {
		return path
	}
	if path == "." {
		return root
	}
	return root + "/" + path
}

// Dispatch returns exactly one Result per command, in input order.
func (d *Dispatcher) Dispatch(ctx context.Context, commands []domain.Command, session domain.Session) []domain.Result {
	results := make([]domain.Result, 0, len(commands))
	for _, cmd := range commands {
		results = append(results, d.run(ctx, cmd, session))
	}
	return results
}

func (d *Dispatcher) run(ctx context.Context, cmd domain.Command, session domain.Session) domain.Result {
	result := domain.Result{Operation: cmd.Operation, Path: cmd.Path}
	log := d.logger.With("session_id", session.ID, "operation", cmd.Operation, "path", cmd.Path)

	if !permission.Allowed(cmd.Operation, session.Permissions) {
		result.Error = fmt.Sprintf("operation %q %s; permitted: [%s]", cmd.Operation, ErrPermissionDenied, session.Permissions)
		log.Warn("Command denied", "permissions", session.Permissions.String())
		return result
	}

	if session.Executor == nil {
		result.Error = ErrExecutorUnavailable.Error()
		log.Warn("Command skipped, no executor attached")
		return result
	}

	callCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	resp, err := session.Executor.Execute(callCtx, domain.ExecRequest{
		Operation: cmd.Operation,
		Path:      Resolve(session.FilesystemRoot, cmd.Path),
		Content:   cmd.Content,
		OldText:   cmd.OldText,
		NewText:   cmd.NewText,
	})
	if errors.Is(err, domain.ErrMalformedResponse) {
		result.Error = fmt.Sprintf("%s: %v", ErrExecutorResponseInvalid, err)
		log.Error("Executor response invalid", "error", err)
		return result
	}
	if err != nil {
		result.Error = fmt.Sprintf("%s: %v", ErrExecutorRequestFailed, err)
		log.Error("Executor call failed", "error", err)
		return result
	}
	if resp == nil {
		result.Error = fmt.Sprintf("%s: empty response", ErrExecutorResponseInvalid)
		log.Error("Executor returned no response")
		return result
	}

	data, err := extractData(cmd.Operation, resp.Data)
	if err != nil {
		result.Error = fmt.Sprintf("%s: %v", ErrExecutorResponseInvalid, err)
		log.Error("Executor response invalid", "error", err)
		return result
	}

	result.Success = resp.Success
	result.Data = data
	result.Error = resp.Error
	log.Debug("Command executed", "success", resp.Success)
	return result
}

// extractData maps executor data by operation: list-files joins names, read-file
// carries content verbatim, everything else drops the payload.
func extractData(op domain.Operation, data any) (string, error) {
	switch op {
	case domain.OpListFiles:
		switch v := data.(type) {
		case nil:
			return "", nil
		case []string:
			return strings.Join(v, ", "), nil
		case []any:
			names := make([]string, 0, len(v))
			for _, item := range v {
				s, ok := item.(string)
				if !ok {
					return "", fmt.Errorf("list entry has type %T", item)
				}
				names = append(names, s)
			}
			return strings.Join(names, ", "), nil
		case string:
			return v, nil
		default:
			return "", fmt.Errorf("list data has type %T", data)
		}
	case domain.OpReadFile:
		switch v := data.(type) {
		case nil:
			return "", nil
		case string:
			return v, nil
		default:
			return "", fmt.Errorf("file content has type %T", data)
		}
	default:
		return "", nil
	}
}
