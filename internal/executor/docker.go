package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/containerd/errdefs"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"

	"github.com/ashureev/shsh-chat/internal/domain"
)

const (
	writeScript      = `mkdir -p -- "$(dirname -- "$1")" && cat > "$1"`
	deleteDirScript  = `test -d "$1" || { echo "$1 is not a directory" >&2; exit 1; }; rm -r -- "$1"`
	deleteFileScript = `test -d "$1" && { echo "$1 is a directory" >&2; exit 1; }; rm -- "$1"`
)

// DockerBackend performs operations inside a running container via docker exec.
type DockerBackend struct {
	cli         *client.Client
	containerID string
	user        string
}

// NewDockerBackend connects to the Docker daemon from the environment and checks
// that containerID is running. user may be empty for the image default.
func NewDockerBackend(ctx context.Context, containerID, user string) (*DockerBackend, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	inspect, err := cli.ContainerInspect(ctx, containerID)
	if err != nil {
		_ = cli.Close()
		if errdefs.IsNotFound(err) {
			return nil, fmt.Errorf("container %s not found", containerID)
		}
		return nil, fmt.Errorf("inspect container %s: %w", containerID, err)
	}
	if inspect.State == nil || !inspect.State.Running {
		_ = cli.Close()
		return nil, fmt.Errorf("container %s is not running", containerID)
	}

	slog.Info("Docker executor backend initialized", "container_id", inspect.ID)
	return &DockerBackend{cli: cli, containerID: inspect.ID, user: user}, nil
}

// Close releases the Docker client.
func (b *DockerBackend) Close() error {
	return b.cli.Close()
}

// Execute runs one operation inside the container.
func (b *DockerBackend) Execute(ctx context.Context, req domain.ExecRequest) (*domain.ExecResponse, error) {
	if req.Path == "" {
		return failure(fmt.Errorf("path is required")), nil
	}

	switch req.Operation {
	case domain.OpReadFile:
		out, err := b.run(ctx, nil, "cat", "--", req.Path)
		if err != nil {
			return b.fail(ctx, err)
		}
		return &domain.ExecResponse{Success: true, Data: out}, nil

	case domain.OpWriteFile:
		if _, err := b.run(ctx, []byte(req.Content), "sh", "-c", writeScript, "sh", req.Path); err != nil {
			return b.fail(ctx, err)
		}
		return success(), nil

	case domain.OpListFiles:
		out, err := b.run(ctx, nil, "ls", "-1Ap", "--", req.Path)
		if err != nil {
			return b.fail(ctx, err)
		}
		names := []string{}
		for _, line := range strings.Split(out, "\n") {
			if line != "" {
				names = append(names, line)
			}
		}
		sort.Strings(names)
		return &domain.ExecResponse{Success: true, Data: names}, nil

	case domain.OpCreateDir:
		if _, err := b.run(ctx, nil, "mkdir", "-p", "--", req.Path); err != nil {
			return b.fail(ctx, err)
		}
		return success(), nil

	case domain.OpDeleteFile:
		if _, err := b.run(ctx, nil, "sh", "-c", deleteFileScript, "sh", req.Path); err != nil {
			return b.fail(ctx, err)
		}
		return success(), nil

	case domain.OpDeleteDir:
		if _, err := b.run(ctx, nil, "sh", "-c", deleteDirScript, "sh", req.Path); err != nil {
			return b.fail(ctx, err)
		}
		return success(), nil

	case domain.OpEditFile:
		content, err := b.run(ctx, nil, "cat", "--", req.Path)
		if err != nil {
			return b.fail(ctx, err)
		}
		updated, err := replaceFirst(content, req.OldText, req.NewText)
		if err != nil {
			return failure(fmt.Errorf("%s: %w", req.Path, err)), nil
		}
		if _, err := b.run(ctx, []byte(updated), "sh", "-c", writeScript, "sh", req.Path); err != nil {
			return b.fail(ctx, err)
		}
		return success(), nil

	default:
		return failure(fmt.Errorf("%w: %q", errUnsupportedOperation, req.Operation)), nil
	}
}

func (b *DockerBackend) fail(ctx context.Context, err error) (*domain.ExecResponse, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	return failure(err), nil
}

// run executes cmd in the container, optionally feeding stdin, and returns stdout.
// A non-zero exit status is an error carrying stderr.
func (b *DockerBackend) run(ctx context.Context, stdin []byte, cmd ...string) (string, error) {
	execConfig := container.ExecOptions{
		AttachStdin:  stdin != nil,
		AttachStdout: true,
		AttachStderr: true,
		Cmd:          cmd,
		User:         b.user,
	}

	resp, err := b.cli.ContainerExecCreate(ctx, b.containerID, execConfig)
	if err != nil {
		return "", fmt.Errorf("create exec in container %s: %w", b.containerID, err)
	}

	attachResp, err := b.cli.ContainerExecAttach(ctx, resp.ID, container.ExecStartOptions{})
	if err != nil {
		return "", fmt.Errorf("attach exec %s: %w", resp.ID, err)
	}
	defer attachResp.Close()

	if stdin != nil {
		if _, err := attachResp.Conn.Write(stdin); err != nil {
			return "", fmt.Errorf("write exec stdin: %w", err)
		}
		if err := attachResp.CloseWrite(); err != nil {
			return "", fmt.Errorf("close exec stdin: %w", err)
		}
	}

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attachResp.Reader); err != nil {
		return "", fmt.Errorf("read exec output: %w", err)
	}

	inspect, err := b.cli.ContainerExecInspect(ctx, resp.ID)
	if err != nil {
		return "", fmt.Errorf("inspect exec %s: %w", resp.ID, err)
	}
	if inspect.ExitCode != 0 {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = fmt.Sprintf("%s exited with code %d", cmd[0], inspect.ExitCode)
		}
		return "", errors.New(msg)
	}
	return stdout.String(), nil
}
