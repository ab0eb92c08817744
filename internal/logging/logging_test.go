package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestInitBuildsLoggerAtConfiguredLevel(t *testing.T) {
	cfg := &Config{Level: zapcore.DebugLevel}
	logger, level, err := Init(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Equal(t, zapcore.DebugLevel, level.Level())

	logger.Debugw("test message", "key", "value")
}

func TestDefaultConfigIsInfoLevel(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, zapcore.InfoLevel, cfg.Level)
}

func TestInitAtomicLevelIsMutable(t *testing.T) {
	cfg := DefaultConfig()
	_, level, err := Init(cfg)
	require.NoError(t, err)

	level.SetLevel(zapcore.ErrorLevel)
	assert.Equal(t, zapcore.ErrorLevel, level.Level())
}
