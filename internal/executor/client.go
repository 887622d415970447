package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/shsh-chat/internal/domain"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/structpb"
)

var (
	errConnectionShutdown       = errors.New("connection shutdown")
	errConnectionStateUnchanged = errors.New("connection state did not change")
)

// ClientConfig holds configuration for the executor client.
type ClientConfig struct {
	ConnectTimeout   time.Duration
	KeepaliveTime    time.Duration
	KeepaliveTimeout time.Duration
	DialOptions      []grpc.DialOption
}

// DefaultClientConfig returns default configuration.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		ConnectTimeout:   5 * time.Second,
		KeepaliveTime:    2 * time.Minute,
		KeepaliveTimeout: 10 * time.Second,
	}
}

// Client is a gRPC client for a filesystem executor. It implements domain.Executor.
type Client struct {
	conn   *grpc.ClientConn
	addr   string
	logger *slog.Logger
}

// NewClient connects to the executor at addr and waits until the connection is ready.
func NewClient(addr string, cfg ClientConfig, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	kacp := keepalive.ClientParameters{
		Time:                cfg.KeepaliveTime,
		Timeout:             cfg.KeepaliveTimeout,
		PermitWithoutStream: false,
	}
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(kacp),
	}, cfg.DialOptions...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to executor at %s: %w", addr, err)
	}

	connectCtx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()
	if err := waitForReady(connectCtx, conn); err != nil {
		if closeErr := conn.Close(); closeErr != nil {
			logger.Warn("failed to close gRPC connection after readiness failure", "error", closeErr)
		}
		return nil, fmt.Errorf("executor at %s not ready: %w", addr, err)
	}

	logger.Info("Connected to filesystem executor", "address", addr)
	return &Client{conn: conn, addr: addr, logger: logger}, nil
}

func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Idle:
			conn.Connect()
		case connectivity.Shutdown:
			return errConnectionShutdown
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("%w from %s", errConnectionStateUnchanged, state)
		}
	}
}

// Execute sends one request to the executor.
func (c *Client) Execute(ctx context.Context, req domain.ExecRequest) (*domain.ExecResponse, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, fullMethod, encodeRequest(req), out); err != nil {
		return nil, fmt.Errorf("execute %s: %w", req.Operation, err)
	}
	resp, err := decodeResponse(out)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrMalformedResponse, req.Operation, err)
	}
	return resp, nil
}

// Addr returns the executor address.
func (c *Client) Addr() string {
	return c.addr
}

// State returns the connectivity state of the underlying connection.
func (c *Client) State() connectivity.State {
	return c.conn.GetState()
}

// Healthy reports whether the underlying connection is usable.
func (c *Client) Healthy() bool {
	state := c.State()
	return state != connectivity.Shutdown && state != connectivity.TransientFailure
}

// Close closes the gRPC connection.
func (c *Client) Close() {
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			c.logger.Warn("failed to close gRPC connection", "error", err)
		}
	}
}
