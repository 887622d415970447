// Chat server: WebSocket sessions with filesystem commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"

	"github.com/ashureev/shsh-chat/internal/api"
	"github.com/ashureev/shsh-chat/internal/chat"
	"github.com/ashureev/shsh-chat/internal/config"
	"github.com/ashureev/shsh-chat/internal/dispatch"
	"github.com/ashureev/shsh-chat/internal/domain"
	"github.com/ashureev/shsh-chat/internal/executor"
	"github.com/ashureev/shsh-chat/internal/generate"
	"github.com/ashureev/shsh-chat/internal/identity"
	"github.com/ashureev/shsh-chat/internal/middleware"
	"github.com/ashureev/shsh-chat/internal/pipeline"
	"github.com/ashureev/shsh-chat/internal/store"
)

const sweepInterval = time.Minute

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	// Initialize dependencies.
	repo, err := store.NewSQLite(cfg.DBPath, cfg.StoreID)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			slog.Error("Failed to close repository", "error", closeErr)
		}
	}()

	if err := repo.Ping(context.Background()); err != nil {
		slog.Error("Database health check failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Database connected", "store_id", repo.StoreID())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := newGenerationBackend(ctx, cfg.Generation)
	if err != nil {
		slog.Error("Failed to initialize generation backend", "error", err)
		os.Exit(1)
	}
	slog.Info("Generation backend ready", "provider", cfg.Generation.Provider, "model", cfg.Generation.Model)

	pool := executor.NewPool(executor.DefaultClientConfig(), logger)
	defer pool.Close()
	if addr := cfg.Filesystem.ExecutorAddr; addr != "" {
		if _, err := pool.Get(addr); err != nil {
			slog.Warn("Filesystem executor not reachable, commands will fail until it is", "address", addr, "error", err)
		}
	} else {
		slog.Info("No filesystem executor configured, filesystem commands are unavailable")
	}

	convlog, err := chat.NewConversationLogger(chat.ConversationLogConfig{
		Enabled:   cfg.ConversationLog.Enabled,
		Dir:       cfg.ConversationLog.Dir,
		QueueSize: cfg.ConversationLog.QueueSize,
	}, logger)
	if err != nil {
		slog.Error("Failed to initialize conversation logger", "error", err)
		os.Exit(1)
	}
	defer func() {
		if closeErr := convlog.Close(); closeErr != nil {
			slog.Error("Failed to close conversation logger", "error", closeErr)
		}
	}()

	// Initialize services.
	adapter := store.NewAdapter(repo, cfg.StoreTimeout)
	generator := generate.New(backend, generate.Config{
		MaxOutputTokens: cfg.Generation.MaxOutputTokens,
		Timeout:         cfg.Generation.Timeout,
	}, logger)
	pipe := pipeline.New(adapter, dispatch.New(cfg.Filesystem.ExecutorTimeout, logger), generator, logger)
	registry := chat.NewRegistry(repo, pool, logger)

	defaults := identity.Defaults{
		StoreID:      cfg.StoreID,
		Root:         cfg.Filesystem.Root,
		Permissions:  cfg.Filesystem.Permissions,
		ExecutorAddr: cfg.Filesystem.ExecutorAddr,
	}

	// Initialize handlers.
	apiHandler := api.NewHandler(repo, pipe, pool, defaults, cfg.FrontendURL, cfg.IsDevelopment())
	wsHandler := chat.NewHandler(registry, pipe, convlog, cfg.FrontendURL, cfg.IsDevelopment(), logger)

	// Setup router.
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(allowedOrigins(cfg)))

	// Public routes.
	apiHandler.RegisterPublicRoutes(r)

	// Session routes.
	r.Group(func(r chi.Router) {
		r.Use(identity.Middleware(repo, defaults, cfg.IsDevelopment()))
		apiHandler.RegisterSessionRoutes(r)
		r.Get("/ws", wsHandler.ServeHTTP)
	})

	// WriteTimeout stays 0 for long-lived WebSocket connections.
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	sweeperDone := chat.StartSweeper(ctx, registry, sweepInterval, cfg.SessionIdleTTL)

	// Start server.
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal.
	<-ctx.Done()
	stop()

	slog.Info("Shutting down gracefully...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}
	<-sweeperDone

	slog.Info("Server stopped successfully")
}

func newGenerationBackend(ctx context.Context, cfg config.GenerationConfig) (domain.GenerationBackend, error) {
	switch cfg.Provider {
	case config.ProviderGemini:
		return generate.NewGeminiBackend(ctx, cfg.APIKey, cfg.Model)
	case config.ProviderEcho:
		return generate.NewEchoBackend(), nil
	default:
		return nil, fmt.Errorf("unsupported generation provider %q", cfg.Provider)
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg.FrontendURL == "" {
		return []string{"*"}
	}
	return []string{cfg.FrontendURL}
}
