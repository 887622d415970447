package executor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/backoff"

	"github.com/ashureev/shsh-chat/internal/domain"
)

func serveTCP(t *testing.T, addr string) *grpc.Server {
	t.Helper()
	lis, err := net.Listen("tcp", addr)
	require.NoError(t, err)
	srv := grpc.NewServer()
	Register(srv, NewLocalBackend(), nil)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)
	return srv
}

func fastReconnectConfig(connectTimeout time.Duration) ClientConfig {
	cfg := DefaultClientConfig()
	cfg.ConnectTimeout = connectTimeout
	cfg.DialOptions = []grpc.DialOption{
		grpc.WithConnectParams(grpc.ConnectParams{
			Backoff: backoff.Config{
				BaseDelay:  10 * time.Millisecond,
				Multiplier: 1.2,
				MaxDelay:   100 * time.Millisecond,
			},
			MinConnectTimeout: time.Second,
		}),
	}
	return cfg
}

func TestPoolClientRecoversAfterExecutorOutage(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	req := domain.ExecRequest{Operation: domain.OpReadFile, Path: filepath.Join(root, "a.txt")}
	ctx := context.Background()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())

	first := serveTCP(t, addr)
	pool := NewPool(fastReconnectConfig(2*time.Second), nil)
	t.Cleanup(pool.Close)

	held, err := pool.Executor(addr)
	require.NoError(t, err)
	resp, err := held.Execute(ctx, req)
	require.NoError(t, err)
	assert.True(t, resp.Success)

	first.Stop()
	callCtx, cancel := context.WithTimeout(ctx, time.Second)
	_, err = held.Execute(callCtx, req)
	cancel()
	require.Error(t, err)

	// Another session resolving during the outage shares the same client.
	again, err := pool.Executor(addr)
	require.NoError(t, err)
	assert.Same(t, held, again)

	serveTCP(t, addr)
	require.Eventually(t, func() bool {
		callCtx, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		resp, err := held.Execute(callCtx, req)
		return err == nil && resp.Success
	}, 10*time.Second, 50*time.Millisecond, "held client should reconnect once the executor is back")
}

func TestPoolDialDoesNotBlockOtherAddresses(t *testing.T) {
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := lis.Addr().String()
	require.NoError(t, lis.Close())
	serveTCP(t, addr)

	pool := NewPool(fastReconnectConfig(2*time.Second), nil)
	t.Cleanup(pool.Close)
	_, err = pool.Get(addr)
	require.NoError(t, err)

	dialing := make(chan error, 1)
	go func() {
		_, err := pool.Get("127.0.0.1:1")
		dialing <- err
	}()
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	_, err = pool.Get(addr)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 500*time.Millisecond)

	assert.Error(t, <-dialing)
}

func TestPoolRejectsEmptyAddress(t *testing.T) {
	_, err := NewPool(DefaultClientConfig(), nil).Get("")
	assert.Error(t, err)
}
