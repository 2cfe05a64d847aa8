package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestConfigFromEnv(t *testing.T) {
	t.Run("defaults to info", func(t *testing.T) {
		t.Setenv("LOG_DEV", "")
		t.Setenv("LOG_LEVEL", "")
		assert.Equal(t, Config{Level: "info"}, ConfigFromEnv())
	})

	t.Run("dev defaults to debug", func(t *testing.T) {
		t.Setenv("LOG_DEV", "1")
		t.Setenv("LOG_LEVEL", "")
		assert.Equal(t, Config{Level: "debug", Dev: true}, ConfigFromEnv())
	})

	t.Run("explicit level wins", func(t *testing.T) {
		t.Setenv("LOG_DEV", "1")
		t.Setenv("LOG_LEVEL", " WARN ")
		assert.Equal(t, Config{Level: "warn", Dev: true}, ConfigFromEnv())
	})
}

func TestLevelFromString(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, levelFromString("debug"))
	assert.Equal(t, zapcore.WarnLevel, levelFromString("warning"))
	assert.Equal(t, zapcore.ErrorLevel, levelFromString("error"))
	assert.Equal(t, zapcore.InfoLevel, levelFromString("verbose"))
}

func TestInit(t *testing.T) {
	logger, err := Init(Config{Level: "error"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.True(t, logger.Core().Enabled(zapcore.ErrorLevel))

	dev, err := Init(Config{Level: "debug", Dev: true})
	require.NoError(t, err)
	assert.True(t, dev.Core().Enabled(zapcore.DebugLevel))
}
