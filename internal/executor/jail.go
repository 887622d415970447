package executor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// ErrOutsideJail is returned for paths that escape the jail root.
var ErrOutsideJail = errors.New("path outside executor root")

// Jail confines requests to a directory tree. Checks are lexical.
type Jail struct {
	root string
}

// NewJail creates a Jail rooted at root.
func NewJail(root string) (Jail, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return Jail{}, fmt.Errorf("resolve jail root %q: %w", root, err)
	}
	return Jail{root: filepath.Clean(abs)}, nil
}

// Root returns the absolute jail root.
func (j Jail) Root() string {
	return j.root
}

// Resolve returns path as an absolute path inside the jail. Relative paths are
// taken relative to the jail root.
func (j Jail) Resolve(path string) (string, error) {
	if !filepath.IsAbs(path) {
		path = filepath.Join(j.root, path)
	}
	path = filepath.Clean(path)

	rel, err := filepath.Rel(j.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrOutsideJail, path)
	}
	return path, nil
}

type jailed struct {
	jail Jail
	next domain.Executor
}

// Jailed wraps next so that every request path is resolved inside jail first.
func Jailed(next domain.Executor, jail Jail) domain.Executor {
	return &jailed{jail: jail, next: next}
}

func (j *jailed) Execute(ctx context.Context, req domain.ExecRequest) (*domain.ExecResponse, error) {
	path, err := j.jail.Resolve(req.Path)
	if err != nil {
		return &domain.ExecResponse{Error: err.Error()}, nil
	}
	req.Path = path
	return j.next.Execute(ctx, req)
}
