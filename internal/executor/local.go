package executor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ashureev/shsh-chat/internal/domain"
)

var (
	errUnsupportedOperation = errors.New("unsupported operation")
	errOldTextNotFound      = errors.New("old_text not found")
)

// LocalBackend performs operations directly on the host filesystem.
type LocalBackend struct{}

// NewLocalBackend creates a LocalBackend.
func NewLocalBackend() *LocalBackend {
	return &LocalBackend{}
}

// Execute runs one operation. Filesystem failures become unsuccessful responses;
// only context cancellation is returned as an error.
func (b *LocalBackend) Execute(ctx context.Context, req domain.ExecRequest) (*domain.ExecResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if req.Path == "" {
		return failure(fmt.Errorf("path is required")), nil
	}

	switch req.Operation {
	case domain.OpReadFile:
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return failure(err), nil
		}
		return &domain.ExecResponse{Success: true, Data: string(data)}, nil

	case domain.OpWriteFile:
		if err := os.MkdirAll(filepath.Dir(req.Path), 0o755); err != nil {
			return failure(err), nil
		}
		if err := os.WriteFile(req.Path, []byte(req.Content), 0o644); err != nil {
			return failure(err), nil
		}
		return success(), nil

	case domain.OpListFiles:
		entries, err := os.ReadDir(req.Path)
		if err != nil {
			return failure(err), nil
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			name := e.Name()
			if e.IsDir() {
				name += "/"
			}
			names = append(names, name)
		}
		sort.Strings(names)
		return &domain.ExecResponse{Success: true, Data: names}, nil

	case domain.OpCreateDir:
		if err := os.MkdirAll(req.Path, 0o755); err != nil {
			return failure(err), nil
		}
		return success(), nil

	case domain.OpDeleteFile:
		info, err := os.Stat(req.Path)
		if err != nil {
			return failure(err), nil
		}
		if info.IsDir() {
			return failure(fmt.Errorf("%s is a directory", req.Path)), nil
		}
		if err := os.Remove(req.Path); err != nil {
			return failure(err), nil
		}
		return success(), nil

	case domain.OpDeleteDir:
		info, err := os.Stat(req.Path)
		if err != nil {
			return failure(err), nil
		}
		if !info.IsDir() {
			return failure(fmt.Errorf("%s is not a directory", req.Path)), nil
		}
		if err := os.RemoveAll(req.Path); err != nil {
			return failure(err), nil
		}
		return success(), nil

	case domain.OpEditFile:
		info, err := os.Stat(req.Path)
		if err != nil {
			return failure(err), nil
		}
		data, err := os.ReadFile(req.Path)
		if err != nil {
			return failure(err), nil
		}
		updated, err := replaceFirst(string(data), req.OldText, req.NewText)
		if err != nil {
			return failure(fmt.Errorf("%s: %w", req.Path, err)), nil
		}
		if err := os.WriteFile(req.Path, []byte(updated), info.Mode().Perm()); err != nil {
			return failure(err), nil
		}
		return success(), nil

	default:
		return failure(fmt.Errorf("%w: %q", errUnsupportedOperation, req.Operation)), nil
	}
}

func replaceFirst(content, oldText, newText string) (string, error) {
	if oldText == "" || !strings.Contains(content, oldText) {
		return "", errOldTextNotFound
	}
	return strings.Replace(content, oldText, newText, 1), nil
}

func success() *domain.ExecResponse {
	return &domain.ExecResponse{Success: true}
}

func failure(err error) *domain.ExecResponse {
	return &domain.ExecResponse{Error: err.Error()}
}
