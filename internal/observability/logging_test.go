package observability

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/ticket-premerge/internal/config"
)

func TestLoggerConfig(t *testing.T) {
	tests := []struct {
		name  string
		level string
		env   string
		want  zapcore.Level
		dev   bool
	}{
		{"debug level", "DEBUG", "development", zapcore.DebugLevel, true},
		{"unknown level falls back to info", "chatty", "development", zapcore.InfoLevel, true},
		{"production", "warn", "production", zapcore.WarnLevel, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := loggerConfig(config.LoggerConfig{Level: tt.level}, config.AppConfig{Env: tt.env})
			assert.Equal(t, tt.want, cfg.Level.Level())
			assert.Equal(t, tt.dev, cfg.Development)
			assert.Equal(t, "json", cfg.Encoding)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LoggerConfig{Level: "error"}, config.AppConfig{Name: "premerge", Version: "test"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))
}
