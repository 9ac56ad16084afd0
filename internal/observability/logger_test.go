// internal/observability/logger_test.go
package observability

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tradehelm/kitelaunch/internal/config"
)

// initToBuffer initializes the global logger against an in-memory writer so
// tests can assert on the rendered output.
func initToBuffer(t *testing.T, cfg config.LoggerConfig) *bytes.Buffer {
	t.Helper()
	ResetForTest()
	t.Cleanup(ResetForTest)

	var buf bytes.Buffer
	Initialize(cfg, zapcore.AddSync(&buf))
	return &buf
}

func TestInitializeConsoleWithColors(t *testing.T) {
	buf := initToBuffer(t, config.LoggerConfig{
		Level:       "debug",
		Format:      "console",
		ServiceName: "TestService",
		Colors:      config.ColorConfig{Info: "green"},
	})

	GetLogger().Info("This is a test message.")

	output := buf.String()
	assert.Contains(t, output, "INFO", "output should contain the log level")
	assert.Contains(t, output, "This is a test message.")
	assert.Contains(t, output, colorGreen, "info level should be colorized green")
	assert.Contains(t, output, colorReset)
	assert.Contains(t, output, "TestService.", "logger name carries the dot suffix")
}

func TestInitializeJSON(t *testing.T) {
	buf := initToBuffer(t, config.LoggerConfig{
		Level:       "info",
		Format:      "json",
		ServiceName: "JSONTest",
	})

	GetLogger().Warn("This is a JSON message.", zap.String("key", "value"))

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &logEntry), "log output should be valid JSON")
	assert.Equal(t, "WARN", logEntry["level"])
	assert.Equal(t, "JSONTest", logEntry["logger"])
	assert.Equal(t, "This is a JSON message.", logEntry["msg"])
	assert.Equal(t, "value", logEntry["key"])
}

func TestInitializeWritesLogFile(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "kitelaunch-test.log")
	initToBuffer(t, config.LoggerConfig{
		Level:   "debug",
		Format:  "json",
		LogFile: logPath,
		MaxSize: 1,
	})

	GetLogger().Error("This should go to the file.")
	Sync()

	content, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Contains(t, string(content), "This should go to the file.")
}

func TestInitializeOnlyOnce(t *testing.T) {
	buf := initToBuffer(t, config.LoggerConfig{Level: "info", Format: "console", ServiceName: "First"})

	// The second initialization must be ignored.
	Initialize(config.LoggerConfig{Level: "debug", Format: "console", ServiceName: "Second"}, zapcore.AddSync(&bytes.Buffer{}))

	GetLogger().Info("test")
	assert.True(t, strings.Contains(buf.String(), "First"))
	assert.False(t, strings.Contains(buf.String(), "Second"))
}

func TestGetLoggerFallback(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	logger := GetLogger()
	require.NotNil(t, logger, "an uninitialized logger must still be usable")
}

func TestGetLoggerReturnsGlobalInstance(t *testing.T) {
	initToBuffer(t, config.LoggerConfig{Level: "info", ServiceName: "GlobalTest"})
	assert.Equal(t, globalLogger.Load(), GetLogger())
}
