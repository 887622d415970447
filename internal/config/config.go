// Package config provides application configuration.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/shsh-chat/internal/domain"
)

// Generation providers.
const (
	ProviderEcho   = "echo"
	ProviderGemini = "gemini"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	DBPath         string
	StoreID        string
	StoreTimeout   time.Duration
	SessionIdleTTL time.Duration
	LogLevel       slog.Level

	Filesystem      FilesystemConfig
	Generation      GenerationConfig
	ConversationLog ConversationLogConfig
}

// FilesystemConfig holds defaults applied to new sessions.
type FilesystemConfig struct {
	Root            string
	Permissions     domain.Permissions
	ExecutorAddr    string // empty means sessions have no executor
	ExecutorTimeout time.Duration
}

// GenerationConfig selects and bounds the generation backend.
type GenerationConfig struct {
	Provider        string
	Model           string
	APIKey          string
	MaxOutputTokens int
	Timeout         time.Duration
}

// ConversationLogConfig controls NDJSON conversation logging.
type ConversationLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("CONVERSATION_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	perms, err := domain.ParsePermissions(getEnv("FS_PERMISSIONS", "read"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: FS_PERMISSIONS: %w", err)
	}

	level, err := parseLevel(getEnv("LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		DBPath:         getEnv("DB_PATH", "./data/chat.db"),
		StoreID:        getEnv("STORE_ID", "default"),
		StoreTimeout:   getEnvDuration("STORE_TIMEOUT", 10*time.Second),
		SessionIdleTTL: getEnvDuration("SESSION_IDLE_TTL", 60*time.Minute),
		LogLevel:       level,
		Filesystem: FilesystemConfig{
			Root:            getEnv("FS_ROOT", "."),
			Permissions:     perms,
			ExecutorAddr:    getEnv("EXECUTOR_ADDR", ""),
			ExecutorTimeout: getEnvDuration("EXECUTOR_TIMEOUT", 30*time.Second),
		},
		Generation: GenerationConfig{
			Provider:        strings.ToLower(getEnv("GENERATION_PROVIDER", ProviderEcho)),
			Model:           getEnv("GENERATION_MODEL", "gemini-2.5-flash"),
			APIKey:          getEnv("GOOGLE_API_KEY", ""),
			MaxOutputTokens: getEnvInt("GENERATION_MAX_TOKENS", 4096),
			Timeout:         getEnvDuration("GENERATION_TIMEOUT", 120*time.Second),
		},
		ConversationLog: ConversationLogConfig{
			Enabled:   getEnvBool("CONVERSATION_LOG_ENABLED", true),
			Dir:       getEnv("CONVERSATION_LOG_DIR", "./data/logs/conversations"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.StoreID == "" {
		return fmt.Errorf("STORE_ID cannot be empty")
	}
	if c.Filesystem.Root == "" {
		return fmt.Errorf("FS_ROOT cannot be empty")
	}
	if c.Filesystem.ExecutorTimeout <= 0 {
		return fmt.Errorf("EXECUTOR_TIMEOUT must be > 0")
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be > 0")
	}
	if c.SessionIdleTTL <= 0 {
		return fmt.Errorf("SESSION_IDLE_TTL must be > 0")
	}
	switch c.Generation.Provider {
	case ProviderEcho:
	case ProviderGemini:
		if c.Generation.APIKey == "" {
			return fmt.Errorf("GOOGLE_API_KEY is required for the gemini provider")
		}
		if c.Generation.Model == "" {
			return fmt.Errorf("GENERATION_MODEL cannot be empty")
		}
	default:
		return fmt.Errorf("GENERATION_PROVIDER %q is not supported", c.Generation.Provider)
	}
	if c.Generation.MaxOutputTokens <= 0 {
		return fmt.Errorf("GENERATION_MAX_TOKENS must be > 0")
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be > 0")
	}
	if c.ConversationLog.Enabled && c.ConversationLog.Dir == "" {
		return fmt.Errorf("CONVERSATION_LOG_DIR cannot be empty")
	}
	if c.ConversationLog.QueueSize <= 0 {
		return fmt.Errorf("CONVERSATION_LOG_QUEUE_SIZE must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
