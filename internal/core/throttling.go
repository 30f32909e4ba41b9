package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ThrottlingConfig controls debouncing and concurrency of validations.
type ThrottlingConfig struct {
	// TypingDelay is the debounce window for typed edits (default: 300ms)
	TypingDelay time.Duration `json:"typing_delay"`

	// PasteDelay is applied once after a bulk paste (default: 100ms)
	PasteDelay time.Duration `json:"paste_delay"`

	// BatchValidationDelay is waited before validating freshly loaded rows (default: 200ms)
	BatchValidationDelay time.Duration `json:"batch_validation_delay"`

	// MaxConcurrentValidations bounds validations running rules at once (default: 5)
	MaxConcurrentValidations int `json:"max_concurrent_validations"`

	// MinValidationInterval is the minimum gap between two validations of the same cell (default: 50ms)
	MinValidationInterval time.Duration `json:"min_validation_interval"`

	// ValidationTimeout caps the timeout of every async rule (default: 30s)
	ValidationTimeout time.Duration `json:"validation_timeout"`

	// Enabled turns debouncing on. When false, edits validate synchronously.
	Enabled bool `json:"enabled"`
}

// DefaultThrottling returns the balanced preset.
func DefaultThrottling() ThrottlingConfig {
	return ThrottlingConfig{
		TypingDelay:              300 * time.Millisecond,
		PasteDelay:               100 * time.Millisecond,
		BatchValidationDelay:     200 * time.Millisecond,
		MaxConcurrentValidations: 5,
		MinValidationInterval:    50 * time.Millisecond,
		ValidationTimeout:        30 * time.Second,
		Enabled:                  true,
	}
}

// FastThrottling returns a responsive preset for small grids.
func FastThrottling() ThrottlingConfig {
	c := DefaultThrottling()
	c.TypingDelay = 150 * time.Millisecond
	c.PasteDelay = 50 * time.Millisecond
	c.BatchValidationDelay = 100 * time.Millisecond
	c.MaxConcurrentValidations = 10
	c.MinValidationInterval = 25 * time.Millisecond
	return c
}

// SlowThrottling returns a conservative preset for expensive rules.
func SlowThrottling() ThrottlingConfig {
	c := DefaultThrottling()
	c.TypingDelay = 500 * time.Millisecond
	c.PasteDelay = 200 * time.Millisecond
	c.BatchValidationDelay = 400 * time.Millisecond
	c.MaxConcurrentValidations = 3
	c.MinValidationInterval = 100 * time.Millisecond
	return c
}

// DisabledThrottling validates every edit immediately.
func DisabledThrottling() ThrottlingConfig {
	c := DefaultThrottling()
	c.TypingDelay = 0
	c.PasteDelay = 0
	c.BatchValidationDelay = 0
	c.MinValidationInterval = 0
	c.Enabled = false
	return c
}

// CustomThrottling derives a preset from a typing delay.
func CustomThrottling(typingDelay time.Duration, maxConcurrent int) ThrottlingConfig {
	c := DefaultThrottling()
	c.TypingDelay = typingDelay
	c.PasteDelay = max(10*time.Millisecond, typingDelay/3)
	c.BatchValidationDelay = typingDelay * 2
	c.MaxConcurrentValidations = maxConcurrent
	c.MinValidationInterval = max(10*time.Millisecond, typingDelay/6)
	return c
}

// ThrottlingPreset returns the preset called name (default, fast, slow,
// disabled). The second value is false for unknown names.
func ThrottlingPreset(name string) (ThrottlingConfig, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "default":
		return DefaultThrottling(), true
	case "fast":
		return FastThrottling(), true
	case "slow":
		return SlowThrottling(), true
	case "disabled", "off":
		return DisabledThrottling(), true
	default:
		return ThrottlingConfig{}, false
	}
}

// Validate checks the config and returns every problem found, wrapped in
// ErrInvalidThrottling.
func (c ThrottlingConfig) Validate() error {
	var errs []error

	if c.TypingDelay < 0 {
		errs = append(errs, fmt.Errorf("typing delay must be >= 0, got %s", c.TypingDelay))
	}
	if c.PasteDelay < 0 {
		errs = append(errs, fmt.Errorf("paste delay must be >= 0, got %s", c.PasteDelay))
	}
	if c.BatchValidationDelay < 0 {
		errs = append(errs, fmt.Errorf("batch validation delay must be >= 0, got %s", c.BatchValidationDelay))
	}
	if c.MinValidationInterval < 0 {
		errs = append(errs, fmt.Errorf("min validation interval must be >= 0, got %s", c.MinValidationInterval))
	}
	if c.MaxConcurrentValidations < 1 {
		errs = append(errs, fmt.Errorf("max concurrent validations must be >= 1, got %d", c.MaxConcurrentValidations))
	}
	if c.ValidationTimeout <= 0 {
		errs = append(errs, fmt.Errorf("validation timeout must be > 0, got %s", c.ValidationTimeout))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidThrottling, errors.Join(errs...))
	}
	return nil
}
