package core

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{"debug level", "debug", true, true},
		{"info level", "info", false, true},
		{"warn level", "warn", false, false},
		{"default level", "", false, true},
		{"unknown level", "invalid", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := newSlogLogger(&buf, tt.level)

			logger.Debug("debug message", "key", "debug")
			logger.Info("info message", "key", "info")

			output := buf.String()
			assert.Equal(t, tt.wantDebug, strings.Contains(output, "debug message"))
			assert.Equal(t, tt.wantInfo, strings.Contains(output, "info message"))
		})
	}
}

func TestLoggerWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newSlogLogger(&buf, "debug")

	logger.Warn("section failed", "section", "need_statement")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(buf.String())), &entry))
	assert.Equal(t, "section failed", entry["msg"])
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "need_statement", entry["section"])
}

func TestNewLoggerFromConfig(t *testing.T) {
	logger, err := NewLoggerFromConfig(&Config{LogLevel: "info", LogBackend: "zap"})
	require.NoError(t, err)
	_, ok := logger.(*zapLogger)
	assert.True(t, ok)
	logger.Info("zap backend ready", "backend", "zap")

	logger, err = NewLoggerFromConfig(&Config{LogLevel: "info"})
	require.NoError(t, err)
	_, ok = logger.(*slogLogger)
	assert.True(t, ok)

	NopLogger().Error("discarded")
}
