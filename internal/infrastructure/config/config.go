package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Sandbox    SandboxConfig
	Instrument InstrumentConfig
	Fetch      FetchConfig
	Logging    LogConfig
	RateLimit  RateLimitConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port        string        `envconfig:"PORT" default:"8000"`
	Host        string        `envconfig:"HOST" default:"0.0.0.0"`
	MaxBodySize int64         `envconfig:"MAX_BODY_SIZE" default:"10485760"`
	Deadline    time.Duration `envconfig:"ANALYSIS_DEADLINE" default:"30s"`
	CORSOrigins []string      `envconfig:"CORS_ORIGINS" default:"*"`
}

// SandboxConfig holds sandbox runtime configuration.
type SandboxConfig struct {
	Timeout      time.Duration `envconfig:"SANDBOX_TIMEOUT" default:"5s"`
	PoolSize     int           `envconfig:"SANDBOX_POOL_SIZE" default:"4"`
	AcquireTTL   time.Duration `envconfig:"SANDBOX_ACQUIRE_TTL" default:"10s"`
	MaxCallStack int           `envconfig:"SANDBOX_MAX_CALL_STACK" default:"1024"`
	TimerBudget  int           `envconfig:"SANDBOX_TIMER_BUDGET" default:"1000"`
	IntervalRuns int           `envconfig:"SANDBOX_INTERVAL_RUNS" default:"10"`
}

// InstrumentConfig holds instrumentation configuration.
type InstrumentConfig struct {
	CataloguePath  string `envconfig:"CATALOGUE_PATH"`
	ResultGlobal   string `envconfig:"RESULT_GLOBAL" default:"script_instrumentation_result"`
	MaxLength      int    `envconfig:"RENDER_MAX_LENGTH" default:"0"`
	MemberFallback bool   `envconfig:"RENDER_MEMBER_FALLBACK" default:"false"`
}

// FetchConfig holds page fetcher configuration.
type FetchConfig struct {
	Enabled           bool          `envconfig:"FETCH_ENABLED" default:"true"`
	Timeout           time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`
	Retries           int           `envconfig:"FETCH_RETRIES" default:"3"`
	RequestsPerSecond float64       `envconfig:"FETCH_RPS" default:"5"`
	UserAgent         string        `envconfig:"FETCH_USER_AGENT" default:"sinkwatch/1.0"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"20"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"40"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the sandbox or server cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Sandbox.PoolSize < 1:
		return fmt.Errorf("invalid config: SANDBOX_POOL_SIZE must be at least 1, got %d", c.Sandbox.PoolSize)
	case c.Sandbox.Timeout <= 0:
		return fmt.Errorf("invalid config: SANDBOX_TIMEOUT must be positive, got %s", c.Sandbox.Timeout)
	case c.Server.MaxBodySize < 0:
		return fmt.Errorf("invalid config: MAX_BODY_SIZE must not be negative, got %d", c.Server.MaxBodySize)
	case c.Fetch.Retries < 0:
		return fmt.Errorf("invalid config: FETCH_RETRIES must not be negative, got %d", c.Fetch.Retries)
	case c.RateLimit.Enabled && c.RateLimit.RequestsPerSecond <= 0:
		return fmt.Errorf("invalid config: RATE_LIMIT_RPS must be positive when rate limiting is enabled")
	}
	return nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:        "8000",
			Host:        "0.0.0.0",
			MaxBodySize: 10 << 20,
			Deadline:    30 * time.Second,
			CORSOrigins: []string{"*"},
		},
		Sandbox: SandboxConfig{
			Timeout:      5 * time.Second,
			PoolSize:     4,
			AcquireTTL:   10 * time.Second,
			MaxCallStack: 1024,
			TimerBudget:  1000,
			IntervalRuns: 10,
		},
		Instrument: InstrumentConfig{
			ResultGlobal: "script_instrumentation_result",
		},
		Fetch: FetchConfig{
			Enabled:           true,
			Timeout:           30 * time.Second,
			Retries:           3,
			RequestsPerSecond: 5,
			UserAgent:         "sinkwatch/1.0",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
			Enabled:           true,
		},
	}
}
