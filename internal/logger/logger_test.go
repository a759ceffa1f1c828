package logger_test

import (
	"bytes"
	"encoding/json"
	"ms-headcount/internal/logger"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogger_PlainOutput(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewLogger(logger.Options{Output: &buf, NoColor: true})

	l.Info("ledger", "entry created")

	line := buf.String()
	assert.Contains(t, line, "INFO")
	assert.Contains(t, line, "[LEDGER")
	assert.Contains(t, line, "entry created")
	assert.Contains(t, line, "logger_test.go")
}

func TestLogger_MinLevel(t *testing.T) {
	var buf bytes.Buffer
	l := logger.NewLogger(logger.Options{Output: &buf, NoColor: true, MinLevel: logger.WARN})

	l.Debug("APP", "hidden")
	l.Info("APP", "hidden too")
	l.Warn("APP", "shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestLogger_WritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l := logger.NewLogger(logger.Options{Dir: dir, Name: "test", Output: &buf, NoColor: true})
	l.Error("DATABASE", "boom")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	raw, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var found bool
	for _, line := range strings.Split(strings.TrimSpace(string(raw)), "\n") {
		var entry logger.LogEntry
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		if entry.Message == "boom" {
			found = true
			assert.Equal(t, "ERROR", entry.Level)
			assert.Equal(t, "DATABASE", entry.Category)
		}
	}
	assert.True(t, found)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, logger.DEBUG, logger.ParseLevel("debug"))
	assert.Equal(t, logger.WARN, logger.ParseLevel("warning"))
	assert.Equal(t, logger.ERROR, logger.ParseLevel("ERROR"))
	assert.Equal(t, logger.INFO, logger.ParseLevel(""))
}
