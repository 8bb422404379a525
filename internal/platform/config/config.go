// Package config loads application configuration from environment variables.
// All variables use the WORLDNET_ prefix.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Cache    CacheConfig
	Quiz     QuizConfig
	Offline  OfflineConfig
	Log      LogConfig
	DataPath string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins []string
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds PostgreSQL connection settings. An empty URL keeps
// quiz sessions in memory.
type DatabaseConfig struct {
	URL      string
	MaxConns int
	MinConns int
}

// CacheConfig holds Redis connection settings. An empty URL keeps the offline
// cache and leaderboard in memory.
type CacheConfig struct {
	URL string
}

// QuizConfig holds quiz generation settings.
type QuizConfig struct {
	DefaultQuestions int
	Seed             uint64 // 0 seeds from entropy
}

// OfflineConfig holds offline snapshot settings.
type OfflineConfig struct {
	TTL      time.Duration
	FreshFor time.Duration
	Compress bool
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables with WORLDNET_ prefix.
func Load() (*Config, error) {
	ttl, err := envDuration("WORLDNET_OFFLINE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	freshFor, err := envDuration("WORLDNET_OFFLINE_FRESH_FOR", 6*time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           envInt("WORLDNET_SERVER_PORT", 8080),
			Host:           envStr("WORLDNET_SERVER_HOST", "0.0.0.0"),
			AllowedOrigins: envList("WORLDNET_SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			URL:      envStr("WORLDNET_DATABASE_URL", ""),
			MaxConns: envInt("WORLDNET_DATABASE_MAX_CONNS", 10),
			MinConns: envInt("WORLDNET_DATABASE_MIN_CONNS", 1),
		},
		Cache: CacheConfig{
			URL: envStr("WORLDNET_CACHE_URL", ""),
		},
		Quiz: QuizConfig{
			DefaultQuestions: envInt("WORLDNET_QUIZ_DEFAULT_QUESTIONS", 10),
			Seed:             uint64(envInt("WORLDNET_QUIZ_SEED", 0)),
		},
		Offline: OfflineConfig{
			TTL:      ttl,
			FreshFor: freshFor,
			Compress: envBool("WORLDNET_OFFLINE_COMPRESS", true),
		},
		Log: LogConfig{
			Level:  envStr("WORLDNET_LOG_LEVEL", "info"),
			Format: envStr("WORLDNET_LOG_FORMAT", "json"),
		},
		DataPath: envStr("WORLDNET_DATA_PATH", "./data"),
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("WORLDNET_SERVER_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Database.MaxConns <= 0 {
		return fmt.Errorf("WORLDNET_DATABASE_MAX_CONNS must be positive, got %d", c.Database.MaxConns)
	}
	if c.Database.MinConns < 0 || c.Database.MinConns > c.Database.MaxConns {
		return fmt.Errorf("WORLDNET_DATABASE_MIN_CONNS must be between 0 and %d, got %d", c.Database.MaxConns, c.Database.MinConns)
	}

	if c.Quiz.DefaultQuestions <= 0 {
		return fmt.Errorf("WORLDNET_QUIZ_DEFAULT_QUESTIONS must be positive, got %d", c.Quiz.DefaultQuestions)
	}

	if c.Offline.TTL <= 0 {
		return fmt.Errorf("WORLDNET_OFFLINE_TTL must be positive, got %s", c.Offline.TTL)
	}
	if c.Offline.FreshFor <= 0 || c.Offline.FreshFor > c.Offline.TTL {
		return fmt.Errorf("WORLDNET_OFFLINE_FRESH_FOR must be positive and not exceed the TTL, got %s", c.Offline.FreshFor)
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("WORLDNET_LOG_FORMAT must be 'json' or 'text', got %q", c.Log.Format)
	}

	if c.DataPath == "" {
		return fmt.Errorf("WORLDNET_DATA_PATH is required")
	}

	return nil
}

// UsesPostgres reports whether sessions are persisted in PostgreSQL.
func (c *Config) UsesPostgres() bool {
	return c.Database.URL != ""
}

// UsesRedis reports whether the offline cache and leaderboard live in Redis.
func (c *Config) UsesRedis() bool {
	return c.Cache.URL != ""
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return strings.EqualFold(v, "true") || v == "1"
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, v, err)
	}
	return d, nil
}

func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
