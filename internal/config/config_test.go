package config

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.False(t, cfg.StrictMode)
	assert.Empty(t, cfg.JournalPath)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.True(t, cfg.MetricsEnabled)
	assert.Equal(t, 32, cfg.MaxDepth)
	assert.Equal(t, 30*time.Second, cfg.StepTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("POP_STRICT_MODE", "true")
	t.Setenv("POP_JOURNAL_PATH", "/tmp/pop.db")
	t.Setenv("POP_LOG_LEVEL", "debug")
	t.Setenv("POP_METRICS_ENABLED", "false")
	t.Setenv("POP_MAX_DEPTH", "4")
	t.Setenv("POP_STEP_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.StrictMode)
	assert.Equal(t, "/tmp/pop.db", cfg.JournalPath)
	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.False(t, cfg.MetricsEnabled)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, 2*time.Second, cfg.StepTimeout)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"bad bool", "POP_STRICT_MODE", "maybe", "parse env:"},
		{"bad level", "POP_LOG_LEVEL", "loud", "parse env:"},
		{"negative depth", "POP_MAX_DEPTH", "-1", "POP_MAX_DEPTH"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
