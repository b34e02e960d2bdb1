package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	// Queue definitions
	QueuesFile string        // Path to queues.yaml
	Queues     []QueueConfig // Loaded from QueuesFile, if it exists

	// Watch settings
	PollInterval time.Duration // How often every queue is drained in watch mode

	// Journal of passes (BoltDB)
	JournalPath    string
	JournalEnabled bool

	// Observability
	LogLevel       string
	LogFile        string
	TracingEnabled bool
	OTLPEndpoint   string
	OTLPProtocol   string // "grpc" or "http"
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		QueuesFile: getEnv("OFFSETQ_QUEUES_FILE", "configs/queues.yaml"),

		PollInterval: getEnvDuration("OFFSETQ_POLL_INTERVAL", 5*time.Second),

		JournalPath:    getEnv("OFFSETQ_JOURNAL_PATH", "offsetq.db"),
		JournalEnabled: getEnvBool("OFFSETQ_JOURNAL_ENABLED", true),

		LogLevel:       getEnv("OFFSETQ_LOG_LEVEL", "info"),
		LogFile:        getEnv("OFFSETQ_LOG_FILE", ""),
		TracingEnabled: getEnvBool("OFFSETQ_TRACING_ENABLED", false),
		OTLPEndpoint:   getEnv("OFFSETQ_OTLP_ENDPOINT", ""),
		OTLPProtocol:   strings.ToLower(getEnv("OFFSETQ_OTLP_PROTOCOL", "grpc")),
	}

	if cfg.QueuesFile != "" {
		queues, err := LoadQueues(cfg.QueuesFile)
		switch {
		case err == nil:
			cfg.Queues = queues
		case errors.Is(err, fs.ErrNotExist):
			// Queue definitions are only needed in watch mode
		default:
			return nil, err
		}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("OFFSETQ_POLL_INTERVAL must be positive")
	}
	if c.JournalEnabled && c.JournalPath == "" {
		return fmt.Errorf("OFFSETQ_JOURNAL_PATH is required when the journal is enabled")
	}
	if c.TracingEnabled && c.OTLPProtocol != "grpc" && c.OTLPProtocol != "http" {
		return fmt.Errorf("OFFSETQ_OTLP_PROTOCOL must be grpc or http")
	}
	for i, q := range c.Queues {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("queue #%d: %w", i+1, err)
		}
	}

	return nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// getEnvDuration gets a duration environment variable or returns a default value.
// Plain integers are read as seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
