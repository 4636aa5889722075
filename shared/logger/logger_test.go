package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(t *testing.T, cfg Config) (*Logger, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	cfg.writer = output

	logger, err := New(&cfg)
	require.NoError(t, err)
	return logger, output
}

func TestNew_JSONFormat(t *testing.T) {
	logger, output := newBufferLogger(t, Config{
		Level:  "debug",
		Format: "json",
	})

	logger.Debug("test debug message", slog.String("key", "value"))

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &logEntry))

	assert.Equal(t, "DEBUG", logEntry["level"])
	assert.Equal(t, "test debug message", logEntry["msg"])
	assert.Equal(t, "value", logEntry["key"])
	assert.Contains(t, logEntry, "time")
}

func TestNew_LevelThreshold(t *testing.T) {
	logger, output := newBufferLogger(t, Config{
		Level:  "warn",
		Format: "json",
	})

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message", slog.String("severity", "high"))
	logger.Error("error message")

	lines := strings.Split(strings.TrimSpace(output.String()), "\n")
	require.Len(t, lines, 2)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &logEntry))
	assert.Equal(t, "WARN", logEntry["level"])
	assert.Equal(t, "high", logEntry["severity"])
}

func TestNew_ConsoleFormat(t *testing.T) {
	logger, output := newBufferLogger(t, Config{
		Level:      "info",
		Format:     "console",
		TimeFormat: time.RFC3339,
	})

	logger.Info("console test")

	// tint renders levels as "INF"
	logOutput := output.String()
	assert.Contains(t, logOutput, "INF")
	assert.Contains(t, logOutput, "console test")
}

func TestNew_SourceLocation(t *testing.T) {
	logger, output := newBufferLogger(t, Config{
		Level:        "info",
		Format:       "json",
		EnableSource: true,
	})

	logger.Info("message with source")

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &logEntry))

	require.Contains(t, logEntry, "source")
	source := logEntry["source"].(map[string]interface{})
	assert.Contains(t, source, "function")
	assert.Contains(t, source, "file")
	assert.Contains(t, source, "line")
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "service.log")

	logger, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: path,
	})
	require.NoError(t, err)

	logger.Info("written to file", slog.String("key", "value"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &logEntry))
	assert.Equal(t, "written to file", logEntry["msg"])
}

func TestNew_FileOutputUnwritable(t *testing.T) {
	_, err := New(&Config{
		Level:  "info",
		Format: "json",
		Output: filepath.Join(t.TempDir(), "missing", "service.log"),
	})
	require.Error(t, err)
}

func TestNewDefault(t *testing.T) {
	logger := NewDefault()
	require.NotNil(t, logger)
	assert.NotNil(t, logger.Logger)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		level    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		// parseLevel is case-sensitive; anything unknown defaults to info
		{"DEBUG", slog.LevelInfo},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, parseLevel(tt.level), tt.level)
	}
}

func TestLogger_WithGroup(t *testing.T) {
	logger, output := newBufferLogger(t, Config{Level: "info", Format: "json"})

	groupLogger := logger.WithGroup("mygroup")
	groupLogger.Info("test message", slog.String("key", "value"))

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &logEntry))

	require.Contains(t, logEntry, "mygroup")
	group := logEntry["mygroup"].(map[string]interface{})
	assert.Equal(t, "value", group["key"])
}

func TestLogger_WithAttrs(t *testing.T) {
	logger, output := newBufferLogger(t, Config{Level: "info", Format: "json"})

	attrLogger := logger.WithAttrs(
		slog.String("request_id", "12345"),
		slog.String("job_id", "job-67890"),
	)
	attrLogger.Info("test message")

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &logEntry))

	assert.Equal(t, "12345", logEntry["request_id"])
	assert.Equal(t, "job-67890", logEntry["job_id"])
}

func TestLogger_With(t *testing.T) {
	logger, output := newBufferLogger(t, Config{Level: "info", Format: "json"})

	contextLogger := logger.With(
		slog.String("service", "job-api"),
		slog.Int("version", 1),
	)
	contextLogger.Info("operation complete")

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(output.Bytes(), &logEntry))

	assert.Equal(t, "job-api", logEntry["service"])
	assert.Equal(t, float64(1), logEntry["version"]) // JSON numbers are float64
	assert.Equal(t, "operation complete", logEntry["msg"])
}
