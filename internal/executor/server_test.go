package executor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

func startBufconn(t *testing.T, backend domain.Executor) *Client {
	t.Helper()
	return dialBufconn(t, func(srv *grpc.Server) { Register(srv, backend, nil) })
}

func dialBufconn(t *testing.T, register func(*grpc.Server)) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	register(srv)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	cfg := DefaultClientConfig()
	cfg.DialOptions = []grpc.DialOption{
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
	}
	client, err := NewClient("passthrough:///bufnet", cfg, nil)
	require.NoError(t, err)
	t.Cleanup(client.Close)
	return client
}

func TestClientServerRoundTrip(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))

	client := startBufconn(t, NewLocalBackend())
	ctx := context.Background()

	resp, err := client.Execute(ctx, domain.ExecRequest{Operation: domain.OpReadFile, Path: filepath.Join(root, "a.txt")})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "hello", resp.Data)

	resp, err = client.Execute(ctx, domain.ExecRequest{Operation: domain.OpListFiles, Path: root})
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, []any{"a.txt", "sub/"}, resp.Data)

	resp, err = client.Execute(ctx, domain.ExecRequest{Operation: domain.OpEditFile, Path: filepath.Join(root, "a.txt"), OldText: "hello", NewText: "bye"})
	require.NoError(t, err)
	assert.True(t, resp.Success, resp.Error)

	resp, err = client.Execute(ctx, domain.ExecRequest{Operation: domain.OpReadFile, Path: filepath.Join(root, "missing")})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.NotEmpty(t, resp.Error)
	assert.Nil(t, resp.Data)
}

type erroringBackend struct{}

func (erroringBackend) Execute(context.Context, domain.ExecRequest) (*domain.ExecResponse, error) {
	return nil, context.DeadlineExceeded
}

func TestServerReportsBackendErrorsAsFailures(t *testing.T) {
	client := startBufconn(t, erroringBackend{})
	resp, err := client.Execute(context.Background(), domain.ExecRequest{Operation: domain.OpReadFile, Path: "/x"})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "deadline exceeded")
}

func TestDecodeResponseRequiresSuccess(t *testing.T) {
	s, err := encodeResponse(&domain.ExecResponse{Success: true, Data: "x"})
	require.NoError(t, err)
	delete(s.Fields, "success")
	_, err = decodeResponse(s)
	assert.Error(t, err)
}

type emptyReplyServer struct{}

func (emptyReplyServer) Execute(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return &structpb.Struct{}, nil
}

func TestClientMarksUndecodableReplies(t *testing.T) {
	client := dialBufconn(t, func(srv *grpc.Server) { srv.RegisterService(&serviceDesc, emptyReplyServer{}) })

	_, err := client.Execute(context.Background(), domain.ExecRequest{Operation: domain.OpReadFile, Path: "/x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}
