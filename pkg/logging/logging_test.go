package logging

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
)

func TestLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, Level(true))
	assert.Equal(t, zapcore.InfoLevel, Level(false))
}

func TestCoreTeesConsoleAndFile(t *testing.T) {
	var console, file bytes.Buffer
	logger := zap.New(NewCore(zapcore.InfoLevel, zapcore.AddSync(&console), zapcore.AddSync(&file), false))

	logger.Debug("hidden")
	logger.Info("mesh built", zap.Int("cells", 12))
	require.NoError(t, logger.Sync())

	assert.NotContains(t, console.String(), "hidden")
	assert.Equal(t, console.String(), file.String())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(file.Bytes(), &entry))
	assert.Equal(t, "mesh built", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.EqualValues(t, 12, entry["cells"])
}

func TestDevelopmentConsole(t *testing.T) {
	var console bytes.Buffer
	logger := zap.New(NewCore(Level(true), zapcore.AddSync(&console), nil, true))

	logger.Debug("buffer dumped", zap.String("size", "4.1 kB"))
	require.NoError(t, logger.Sync())

	line := console.String()
	assert.Contains(t, line, "buffer dumped")
	assert.Contains(t, line, "DEBUG")
	assert.False(t, strings.HasPrefix(line, "{"), "console output is not JSON")
}

func TestNewWritesLogFile(t *testing.T) {
	cfg := DefaultConfig()
	cfg.File = filepath.Join(t.TempDir(), "logs", "sightdata.log")

	logger := New(cfg)
	logger.Info("started", zap.String("input", "slices"))
	logger.Debug("not written at info level")
	_ = logger.Sync()

	raw, err := os.ReadFile(cfg.File)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"message":"started"`)
	assert.NotContains(t, string(raw), "not written")
}

func TestFileWriterDefaults(t *testing.T) {
	w := NewFileWriter(Config{File: filepath.Join(t.TempDir(), "a.log")})
	_, err := w.Write([]byte("line\n"))
	require.NoError(t, err)
}
