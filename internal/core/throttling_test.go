package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestThrottlingPresets(t *testing.T) {
	tests := []struct {
		name          string
		cfg           ThrottlingConfig
		typing        time.Duration
		maxConcurrent int
		enabled       bool
	}{
		{"default", DefaultThrottling(), 300 * time.Millisecond, 5, true},
		{"fast", FastThrottling(), 150 * time.Millisecond, 10, true},
		{"slow", SlowThrottling(), 500 * time.Millisecond, 3, true},
		{"disabled", DisabledThrottling(), 0, 5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NoError(t, tt.cfg.Validate())
			assert.Equal(t, tt.typing, tt.cfg.TypingDelay)
			assert.Equal(t, tt.maxConcurrent, tt.cfg.MaxConcurrentValidations)
			assert.Equal(t, tt.enabled, tt.cfg.Enabled)

			byName, ok := ThrottlingPreset(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.cfg, byName)
		})
	}
}

func TestThrottlingPreset_Aliases(t *testing.T) {
	cfg, ok := ThrottlingPreset("")
	require.True(t, ok)
	assert.Equal(t, DefaultThrottling(), cfg)

	cfg, ok = ThrottlingPreset(" OFF ")
	require.True(t, ok)
	assert.False(t, cfg.Enabled)

	_, ok = ThrottlingPreset("turbo")
	assert.False(t, ok)
}

func TestCustomThrottling(t *testing.T) {
	cfg := CustomThrottling(600*time.Millisecond, 8)
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 200*time.Millisecond, cfg.PasteDelay)
	assert.Equal(t, 1200*time.Millisecond, cfg.BatchValidationDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.MinValidationInterval)

	small := CustomThrottling(12*time.Millisecond, 1)
	assert.Equal(t, 10*time.Millisecond, small.PasteDelay)
	assert.Equal(t, 10*time.Millisecond, small.MinValidationInterval)
}

func TestThrottlingConfig_ValidateJoinsProblems(t *testing.T) {
	cfg := ThrottlingConfig{
		TypingDelay:              -time.Millisecond,
		PasteDelay:               -time.Millisecond,
		MaxConcurrentValidations: 0,
		ValidationTimeout:        0,
	}
	err := cfg.Validate()
	require.ErrorIs(t, err, ErrInvalidThrottling)
	for _, want := range []string{"typing delay", "paste delay", "max concurrent", "validation timeout"} {
		assert.Contains(t, err.Error(), want)
	}
}
