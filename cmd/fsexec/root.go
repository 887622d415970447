package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"

	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/executor"
)

const (
	backendLocal  = "local"
	backendDocker = "docker"

	shutdownGrace = 10 * time.Second
)

type options struct {
	addr      string
	backend   string
	container string
	user      string
	jail      string
	logLevel  string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "fsexec",
		Short:         "Filesystem executor for chat sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := run(cmd.Context(), opts); err != nil {
				slog.Error("fsexec failed", "error", err)
				return err
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", envOr("EXECUTOR_LISTEN_ADDR", ":50052"), "gRPC listen address")
	flags.StringVar(&opts.backend, "backend", backendLocal, "operation backend: local or docker")
	flags.StringVar(&opts.container, "container", "", "container id or name (docker backend)")
	flags.StringVar(&opts.user, "user", "", "user to run docker exec as (docker backend)")
	flags.StringVar(&opts.jail, "jail", "", "optional root directory every path must stay inside")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	return cmd
}

func (o *options) validate() error {
	switch o.backend {
	case backendLocal:
	case backendDocker:
		if o.container == "" {
			return errors.New("--container is required for the docker backend")
		}
	default:
		return fmt.Errorf("unknown backend %q", o.backend)
	}
	if o.addr == "" {
		return errors.New("--addr cannot be empty")
	}
	return nil
}

func run(parent context.Context, opts *options) error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(opts.logLevel)); err != nil {
		return fmt.Errorf("--log-level: %w", err)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := opts.validate(); err != nil {
		return err
	}

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, closeBackend, err := newBackend(ctx, opts)
	if err != nil {
		return err
	}
	defer closeBackend()

	lis, err := net.Listen("tcp", opts.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", opts.addr, err)
	}

	srv := grpc.NewServer(grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
		MinTime:             time.Minute,
		PermitWithoutStream: false,
	}))
	executor.Register(srv, backend, logger)
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(srv, healthSrv)
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Executor listening", "addr", lis.Addr().String(), "backend", opts.backend, "jail", opts.jail)
		if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down executor...")
		healthSrv.Shutdown()

		stopped := make(chan struct{})
		go func() {
			srv.GracefulStop()
			close(stopped)
		}()
		select {
		case <-stopped:
		case <-time.After(shutdownGrace):
			slog.Warn("Graceful stop timed out, forcing")
			srv.Stop()
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	slog.Info("Executor stopped")
	return nil
}

func newBackend(ctx context.Context, opts *options) (domain.Executor, func(), error) {
	var (
		backend domain.Executor
		closeFn = func() {}
	)

	switch opts.backend {
	case backendDocker:
		db, err := executor.NewDockerBackend(ctx, opts.container, opts.user)
		if err != nil {
			return nil, nil, err
		}
		backend = db
		closeFn = func() {
			if err := db.Close(); err != nil {
				slog.Warn("Failed to close docker client", "error", err)
			}
		}
	default:
		backend = executor.NewLocalBackend()
	}

	if opts.jail != "" {
		jail, err := executor.NewJail(opts.jail)
		if err != nil {
			closeFn()
			return nil, nil, err
		}
		backend = executor.Jailed(backend, jail)
		slog.Info("Executor jail enabled", "root", jail.Root())
	}
	return backend, closeFn, nil
}

func envOr(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}
