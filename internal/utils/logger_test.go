package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("WARN"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel(""))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("garbage"))
}

func TestGetLoggerInitializesWhenUnset(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	Logger = nil
	logger := GetLogger()
	require.NotNil(t, logger)
	assert.Same(t, Logger, logger)
}

func TestComponentIsNilSafe(t *testing.T) {
	old := Logger
	defer func() { Logger = old }()

	Logger = nil
	logger := Component("s3")
	require.NotNil(t, logger)
	logger.Debug("named loggers never panic before InitLogger")
}
