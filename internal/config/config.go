// Package config provides centralized configuration management for the application.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"net"
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Server   ServerConfig
	Grid     GridConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envDefault:"8080"`

	// ReadTimeout is the maximum duration for reading request body (default: 15s)
	ReadTimeout time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`

	// WriteTimeout is the maximum duration for writing response (default: 0 for SSE)
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"0s"`

	// IdleTimeout is the keep-alive timeout (default: 60s)
	IdleTimeout time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`

	// ShutdownTimeout is the maximum duration to wait for graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// RateLimit is the number of requests per minute per client IP; 0 disables it (default: 600)
	RateLimit int `env:"SERVER_RATE_LIMIT" envDefault:"600"`

	// APIKeys is the comma-separated list of accepted X-API-Key values; empty disables auth
	APIKeys []string `env:"SERVER_API_KEYS"`

	// TrustedProxies lists CIDRs or IPs whose X-Real-IP / X-Forwarded-For headers are honored
	TrustedProxies []string `env:"SERVER_TRUSTED_PROXIES"`
}

// GridConfig holds the validation grid settings.
type GridConfig struct {
	// ThrottlePreset selects default, fast, slow, disabled or custom (default: default).
	// The delay and concurrency fields below apply only to the custom preset.
	ThrottlePreset string `env:"GRID_THROTTLE_PRESET" envDefault:"default"`

	// TypingDelay is the debounce window for typed edits (default: 300ms)
	TypingDelay time.Duration `env:"GRID_TYPING_DELAY" envDefault:"300ms"`

	// PasteDelay is the single delay applied after a paste (default: 100ms)
	PasteDelay time.Duration `env:"GRID_PASTE_DELAY" envDefault:"100ms"`

	// BatchDelay is waited before validating loaded rows (default: 200ms)
	BatchDelay time.Duration `env:"GRID_BATCH_DELAY" envDefault:"200ms"`

	// MaxConcurrent bounds validations running at once (default: 5)
	MaxConcurrent int `env:"GRID_MAX_CONCURRENT" envDefault:"5"`

	// MinInterval is the minimum gap between validations of one cell (default: 50ms)
	MinInterval time.Duration `env:"GRID_MIN_INTERVAL" envDefault:"50ms"`

	// ValidationTimeout caps every async rule timeout (default: 30s)
	ValidationTimeout time.Duration `env:"GRID_VALIDATION_TIMEOUT" envDefault:"30s"`

	// InitialRows is the starting row count, clamped by the grid (default: 100)
	InitialRows int `env:"GRID_INITIAL_ROWS" envDefault:"100"`

	// Columns is the comma-separated list of data columns
	Columns []string `env:"GRID_COLUMNS" envDefault:"Meno,Email,Vek,Krajina"`

	// Required lists columns that get a Required rule
	Required []string `env:"GRID_REQUIRED" envDefault:"Meno,Email"`

	// EmailColumns lists columns that get an Email rule
	EmailColumns []string `env:"GRID_EMAIL_COLUMNS" envDefault:"Email"`
}

// DatabaseConfig holds the optional PostgreSQL connection used by lookup rules.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string; empty disables lookup rules
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL"`

	// MaxConns is the maximum number of connections in the pool (default: 10)
	MaxConns int `env:"DB_MAX_CONNS" envDefault:"10"`

	// MinConns is the minimum number of connections to keep open (default: 2)
	MinConns int `env:"DB_MIN_CONNS" envDefault:"2"`

	// MaxConnLifetime is the maximum lifetime of a connection (default: 1h)
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`

	// MaxConnIdleTime is the maximum idle time before a connection is closed (default: 30m)
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// LookupColumn is the grid column checked against LookupQuery
	LookupColumn string `env:"DB_LOOKUP_COLUMN"`

	// LookupQuery selects one boolean for the cell text passed as $1
	LookupQuery string `env:"DB_LOOKUP_QUERY"`
}

// RedisConfig holds the optional Redis connection used by set-membership rules.
type RedisConfig struct {
	// URL is the Redis connection string; empty disables set rules
	URL string `env:"REDIS_URL"`

	// SetColumn is the grid column checked against SetKey
	SetColumn string `env:"REDIS_SET_COLUMN"`

	// SetKey is the Redis set holding the allowed values
	SetKey string `env:"REDIS_SET_KEY"`

	// RetryAttempts is the number of connection attempts at startup (default: 3)
	RetryAttempts int `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`

	// RetryInterval is the wait between connection attempts (default: 2s)
	RetryInterval time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`

	// ConnectTimeout bounds all connection attempts together (default: 10s)
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"10s"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
