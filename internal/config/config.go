// Package config loads and validates application configuration from
// file, environment and defaults via Viper.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/donor-eligibility-engine/internal/domain"
)

// Manager implements the domain.ConfigManager interface using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager loads configuration and returns a manager over it.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/donor-eligibility-engine/")

	viper.SetEnvPrefix("DONOR_ELIG")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// no config file; defaults and environment variables apply
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.api_key", "")

	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.database", "donor_eligibility")
	viper.SetDefault("database.username", "postgres")
	viper.SetDefault("database.password", "")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrations_path", "migrations")

	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "24h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")

	viper.SetDefault("embedding.base_url", "https://api.openai.com")
	viper.SetDefault("embedding.model", "text-embedding-3-small")
	viper.SetDefault("embedding.timeout", "30s")
	viper.SetDefault("embedding.rate_limit", 5)
	viper.SetDefault("embedding.lru_size", 1024)
	viper.SetDefault("embedding.dimensions", 1536)

	viper.SetDefault("extraction.base_url", "")
	viper.SetDefault("extraction.timeout", "5m")

	viper.SetDefault("worker.max_concurrent", 3)
	viper.SetDefault("worker.poll_interval", "5s")
	viper.SetDefault("worker.process_timeout", "10m")
	viper.SetDefault("worker.shutdown_timeout", "30s")

	viper.SetDefault("trigger.lock_attempts", 3)
	viper.SetDefault("trigger.lock_backoff_base", "200ms")
	viper.SetDefault("trigger.lock_ttl", "5m")
	viper.SetDefault("trigger.reconcile_interval", "1m")

	viper.SetDefault("predictor.similarity_threshold", 0.85)
	viper.SetDefault("predictor.max_cases", 10)

	viper.SetDefault("anchor.backend", "postgres")
	viper.SetDefault("anchor.sqlite_path", "anchor_decisions.db")

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Reload reloads the configuration from its sources.
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate checks the loaded configuration for values the engine cannot
// run with.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if config.Database.Database == "" {
		return fmt.Errorf("database name is required")
	}
	if config.Database.Username == "" {
		return fmt.Errorf("database username is required")
	}

	if config.Worker.MaxConcurrent < 1 {
		return fmt.Errorf("worker max_concurrent must be at least 1")
	}
	if config.Worker.PollInterval <= 0 {
		return fmt.Errorf("worker poll_interval must be positive")
	}

	if config.Trigger.LockAttempts < 1 {
		return fmt.Errorf("trigger lock_attempts must be at least 1")
	}

	if config.Predictor.SimilarityThreshold < 0 || config.Predictor.SimilarityThreshold > 1 {
		return fmt.Errorf("predictor similarity_threshold must be between 0 and 1")
	}
	if config.Predictor.MaxCases < 1 {
		return fmt.Errorf("predictor max_cases must be at least 1")
	}

	switch config.Anchor.Backend {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("anchor backend must be postgres or sqlite, got %q", config.Anchor.Backend)
	}
	if config.Anchor.Backend == "sqlite" && config.Anchor.SQLitePath == "" {
		return fmt.Errorf("anchor sqlite_path is required for the sqlite backend")
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("cache redis_url is required when the cache is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
