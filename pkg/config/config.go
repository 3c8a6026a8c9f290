package config

import (
	"fmt"
	"time"
)

// Config holds runtime configuration for the FitCoach bot.
type Config struct {
	AppEnv    string          `mapstructure:"app_env"`
	Server    ServerConfig    `mapstructure:"server" validate:"required"`
	Bot       BotConfig       `mapstructure:"bot"`
	Logger    LoggerConfig    `mapstructure:"logger" validate:"required"`
	Sentry    SentryConfig    `mapstructure:"sentry"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Session   SessionConfig   `mapstructure:"session"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Jobs      JobsConfig      `mapstructure:"jobs"`
	I18n      I18nConfig      `mapstructure:"i18n"`
}

// ServerConfig configures the HTTP chat transport.
type ServerConfig struct {
	Port            string        `mapstructure:"port" validate:"required"`
	Mode            string        `mapstructure:"mode" validate:"omitempty,oneof=debug release test"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// BotConfig configures the Telegram transport.
type BotConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Token   string        `mapstructure:"token" validate:"required_if=Enabled true"`
	Mode    string        `mapstructure:"mode" validate:"omitempty,oneof=polling webhook"`
	Listen  string        `mapstructure:"listen"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	Format     string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SentryConfig configures error reporting.
type SentryConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	DSN              string  `mapstructure:"dsn" validate:"required_if=Enabled true"`
	TracesSampleRate float64 `mapstructure:"traces_sample_rate" validate:"gte=0,lte=1"`
}

// RedisConfig mirrors pkg/redis.Config for viper decoding.
type RedisConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Addr            string        `mapstructure:"addr" validate:"required_if=Enabled true"`
	Password        string        `mapstructure:"password"`
	DB              int           `mapstructure:"db"`
	PoolSize        int           `mapstructure:"pool_size"`
	MinIdleConns    int           `mapstructure:"min_idle_conns"`
	PoolTimeout     time.Duration `mapstructure:"pool_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	MinRetryBackoff time.Duration `mapstructure:"min_retry_backoff"`
	MaxRetryBackoff time.Duration `mapstructure:"max_retry_backoff"`
}

// DatabaseConfig configures the PostgreSQL handoff log.
type DatabaseConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Host          string `mapstructure:"host" validate:"required_if=Enabled true"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user" validate:"required_if=Enabled true"`
	Password      string `mapstructure:"password"`
	Name          string `mapstructure:"name" validate:"required_if=Enabled true"`
	SSLMode       string `mapstructure:"sslmode"`
	MigrationsDir string `mapstructure:"migrations_dir"`
}

// SessionConfig configures server-side session storage used by the Telegram transport.
type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	FlowIdleTTL     time.Duration `mapstructure:"flow_idle_ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// RateLimitRule is a single limit/window pair, e.g. 30 per "1m".
type RateLimitRule struct {
	Limit  int    `mapstructure:"limit" validate:"gte=0"`
	Window string `mapstructure:"window"`
}

// RateLimitConfig configures per-client throttling.
type RateLimitConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Global    RateLimitRule `mapstructure:"global"`
	PerClient RateLimitRule `mapstructure:"per_client"`
	Whitelist []int64       `mapstructure:"whitelist"`
}

// JobsConfig configures asynq background processing.
type JobsConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Concurrency      int           `mapstructure:"concurrency"`
	PurgeCron        string        `mapstructure:"purge_cron"`
	HandoffRetention time.Duration `mapstructure:"handoff_retention"`
}

// I18nConfig configures translation catalogs.
type I18nConfig struct {
	Dir         string `mapstructure:"dir"`
	DefaultLang string `mapstructure:"default_lang" validate:"omitempty,oneof=en ml"`
}

// DSN returns PostgreSQL DSN based on config values.
func (c DatabaseConfig) DSN() string {
	port := c.Port
	if port == "" {
		port = "5432"
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}

	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host,
		port,
		c.User,
		c.Password,
		c.Name,
		sslMode,
	)
}
