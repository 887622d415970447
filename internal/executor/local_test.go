package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exec(t *testing.T, b *LocalBackend, req domain.ExecRequest) *domain.ExecResponse {
	t.Helper()
	resp, err := b.Execute(context.Background(), req)
	require.NoError(t, err)
	require.NotNil(t, resp)
	return resp
}

func TestLocalBackendWriteReadList(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend()

	resp := exec(t, b, domain.ExecRequest{Operation: domain.OpWriteFile, Path: filepath.Join(dir, "nested", "a.txt"), Content: "hello"})
	assert.True(t, resp.Success, resp.Error)

	resp = exec(t, b, domain.ExecRequest{Operation: domain.OpReadFile, Path: filepath.Join(dir, "nested", "a.txt")})
	assert.True(t, resp.Success)
	assert.Equal(t, "hello", resp.Data)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.txt"), nil, 0o644))
	resp = exec(t, b, domain.ExecRequest{Operation: domain.OpListFiles, Path: dir})
	assert.True(t, resp.Success)
	assert.Equal(t, []string{"b.txt", "nested/"}, resp.Data)
}

func TestLocalBackendReadMissing(t *testing.T) {
	resp := exec(t, NewLocalBackend(), domain.ExecRequest{Operation: domain.OpReadFile, Path: filepath.Join(t.TempDir(), "missing.txt")})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "no such file")
}

func TestLocalBackendCreateAndDelete(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend()
	sub := filepath.Join(dir, "x", "y")
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("1"), 0o644))

	assert.True(t, exec(t, b, domain.ExecRequest{Operation: domain.OpCreateDir, Path: sub}).Success)
	assert.DirExists(t, sub)

	resp := exec(t, b, domain.ExecRequest{Operation: domain.OpDeleteFile, Path: sub})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "is a directory")

	resp = exec(t, b, domain.ExecRequest{Operation: domain.OpDeleteDir, Path: file})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "not a directory")

	assert.True(t, exec(t, b, domain.ExecRequest{Operation: domain.OpDeleteFile, Path: file}).Success)
	assert.NoFileExists(t, file)

	assert.True(t, exec(t, b, domain.ExecRequest{Operation: domain.OpDeleteDir, Path: filepath.Join(dir, "x")}).Success)
	assert.NoDirExists(t, filepath.Join(dir, "x"))
}

func TestLocalBackendEdit(t *testing.T) {
	dir := t.TempDir()
	b := NewLocalBackend()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("a b a"), 0o600))

	resp := exec(t, b, domain.ExecRequest{Operation: domain.OpEditFile, Path: file, OldText: "a", NewText: "c"})
	assert.True(t, resp.Success, resp.Error)
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Equal(t, "c b a", string(data))

	resp = exec(t, b, domain.ExecRequest{Operation: domain.OpEditFile, Path: file, OldText: "zzz", NewText: "c"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "old_text not found")
}

func TestLocalBackendRejects(t *testing.T) {
	b := NewLocalBackend()
	resp := exec(t, b, domain.ExecRequest{Operation: "chmod", Path: "/tmp"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "unsupported operation")

	resp = exec(t, b, domain.ExecRequest{Operation: domain.OpReadFile})
	assert.False(t, resp.Success)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := b.Execute(ctx, domain.ExecRequest{Operation: domain.OpReadFile, Path: "/tmp"})
	assert.ErrorIs(t, err, context.Canceled)
}
