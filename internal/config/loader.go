package config

import (
	"fmt"
	"net"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"

	"github.com/JonMunkholm/gridcheck/internal/core"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if parsing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DB_URL")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Throttling converts the grid settings into the engine configuration.
func (c *Config) Throttling() (core.ThrottlingConfig, error) {
	g := c.Grid
	if strings.EqualFold(strings.TrimSpace(g.ThrottlePreset), "custom") {
		return core.ThrottlingConfig{
			TypingDelay:              g.TypingDelay,
			PasteDelay:               g.PasteDelay,
			BatchValidationDelay:     g.BatchDelay,
			MaxConcurrentValidations: g.MaxConcurrent,
			MinValidationInterval:    g.MinInterval,
			ValidationTimeout:        g.ValidationTimeout,
			Enabled:                  true,
		}, nil
	}

	cfg, ok := core.ThrottlingPreset(g.ThrottlePreset)
	if !ok {
		return core.ThrottlingConfig{}, fmt.Errorf("%w: unknown preset %q", core.ErrInvalidThrottling, g.ThrottlePreset)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, "SERVER_RATE_LIMIT must be non-negative")
	}
	for _, key := range c.Server.APIKeys {
		if len(strings.TrimSpace(key)) < 16 {
			errs = append(errs, "SERVER_API_KEYS entries must be at least 16 characters")
			break
		}
	}
	for _, proxy := range c.Server.TrustedProxies {
		proxy = strings.TrimSpace(proxy)
		if _, _, err := net.ParseCIDR(proxy); err != nil && net.ParseIP(proxy) == nil {
			errs = append(errs, fmt.Sprintf("SERVER_TRUSTED_PROXIES entry %q is not a CIDR or IP", proxy))
		}
	}

	// Grid validation
	if t, err := c.Throttling(); err != nil {
		errs = append(errs, fmt.Sprintf("GRID_THROTTLE_PRESET (%q) must be one of: default, fast, slow, disabled, custom", c.Grid.ThrottlePreset))
	} else if err := t.Validate(); err != nil {
		errs = append(errs, fmt.Sprintf("GRID_* throttling settings: %v", err))
	}
	if c.Grid.InitialRows < 0 || c.Grid.InitialRows > core.MaxInitialRows {
		errs = append(errs, fmt.Sprintf("GRID_INITIAL_ROWS (%d) must be 0-%d", c.Grid.InitialRows, core.MaxInitialRows))
	}
	if len(c.Grid.Columns) == 0 {
		errs = append(errs, "GRID_COLUMNS must list at least one column")
	}
	for _, col := range append(append([]string{}, c.Grid.Required...), c.Grid.EmailColumns...) {
		if !c.hasColumn(col) {
			errs = append(errs, fmt.Sprintf("rule column %q is not listed in GRID_COLUMNS", col))
		}
	}

	// Database validation
	if c.Database.URL != "" {
		if c.Database.MaxConns <= 0 {
			errs = append(errs, "DB_MAX_CONNS must be positive")
		}
		if c.Database.MaxConns < c.Database.MinConns {
			errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
				c.Database.MaxConns, c.Database.MinConns))
		}
	}
	if (c.Database.LookupColumn == "") != (c.Database.LookupQuery == "") {
		errs = append(errs, "DB_LOOKUP_COLUMN and DB_LOOKUP_QUERY must be set together")
	}
	if c.Database.LookupColumn != "" {
		if c.Database.URL == "" {
			errs = append(errs, "DB_LOOKUP_COLUMN requires DATABASE_URL")
		}
		if !c.hasColumn(c.Database.LookupColumn) {
			errs = append(errs, fmt.Sprintf("DB_LOOKUP_COLUMN %q is not listed in GRID_COLUMNS", c.Database.LookupColumn))
		}
	}

	// Redis validation
	if c.Redis.URL != "" {
		if c.Redis.RetryAttempts < 1 {
			errs = append(errs, "REDIS_RETRY_ATTEMPTS must be at least 1")
		}
		if c.Redis.ConnectTimeout <= 0 {
			errs = append(errs, "REDIS_CONNECT_TIMEOUT must be positive")
		}
	}
	if (c.Redis.SetColumn == "") != (c.Redis.SetKey == "") {
		errs = append(errs, "REDIS_SET_COLUMN and REDIS_SET_KEY must be set together")
	}
	if c.Redis.SetColumn != "" {
		if c.Redis.URL == "" {
			errs = append(errs, "REDIS_SET_COLUMN requires REDIS_URL")
		}
		if !c.hasColumn(c.Redis.SetColumn) {
			errs = append(errs, fmt.Sprintf("REDIS_SET_COLUMN %q is not listed in GRID_COLUMNS", c.Redis.SetColumn))
		}
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

func (c *Config) hasColumn(name string) bool {
	for _, col := range c.Grid.Columns {
		if strings.EqualFold(col, name) {
			return true
		}
	}
	return false
}

// String returns a safe string representation of the config for logging.
// Connection URLs are masked.
func (c *Config) String() string {
	var b strings.Builder
	b.WriteString("Config{")
	b.WriteString(fmt.Sprintf("Server: {Host: %q, Port: %d, APIKeys: %d, TrustedProxies: %v}, ",
		c.Server.Host, c.Server.Port, len(c.Server.APIKeys), c.Server.TrustedProxies))
	b.WriteString(fmt.Sprintf("Grid: {Preset: %q, MaxConcurrent: %d, InitialRows: %d, Columns: %v}, ",
		c.Grid.ThrottlePreset, c.Grid.MaxConcurrent, c.Grid.InitialRows, c.Grid.Columns))
	b.WriteString(fmt.Sprintf("Database: {URL: %s, LookupColumn: %q}, ", mask(c.Database.URL), c.Database.LookupColumn))
	b.WriteString(fmt.Sprintf("Redis: {URL: %s, SetColumn: %q}, ", mask(c.Redis.URL), c.Redis.SetColumn))
	b.WriteString(fmt.Sprintf("Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format))
	b.WriteString("}")
	return b.String()
}

func mask(url string) string {
	if url == "" {
		return "[UNSET]"
	}
	return "[MASKED]"
}
