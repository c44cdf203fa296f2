package observability

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/delvn/threatbrief/internal/config"
)

func TestInitializeIsIdempotent(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	writer := zapcore.AddSync(&buf)
	Initialize(config.LoggerConfig{Level: "debug", Format: "json", ServiceName: "test"}, writer)
	first := GetLogger()

	Initialize(config.LoggerConfig{Level: "error", Format: "console", ServiceName: "other"}, writer)
	second := GetLogger()

	assert.Same(t, first, second)
}

func TestGetLoggerBeforeInitializeReturnsFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger)
}

func TestInitializeWithBadLevelDefaultsToInfo(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "not-a-level", Format: "json", ServiceName: "test"}, zapcore.AddSync(&buf))

	logger := GetLogger()
	assert.True(t, logger.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, logger.Core().Enabled(zapcore.DebugLevel))
}

func TestLoggedOutputIsStructuredJSON(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "test"}, zapcore.AddSync(&buf))

	GetLogger().Info("hello")
	assert.Contains(t, buf.String(), `"msg":"hello"`)
}
