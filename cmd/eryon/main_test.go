package main

import (
	"context"
	log "log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunReturnsBootErrors(t *testing.T) {
	prev := log.Default()
	t.Cleanup(func() { log.SetDefault(prev) })

	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("API_KEY", "")

	dir := t.TempDir()
	logFile := filepath.Join(dir, "eryon.log")

	err := run(context.Background(), options{
		configPath: filepath.Join(dir, "missing.yaml"),
		envFile:    filepath.Join(dir, "missing.env"),
		logLevel:   "info",
		logFile:    logFile,
		noVoice:    true,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid config")

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), "Booting up")
	assert.Contains(t, string(data), "Invalid config")
}

func TestRunBadLogFile(t *testing.T) {
	err := run(context.Background(), options{
		logFile: filepath.Join(t.TempDir(), "no", "such", "dir", "eryon.log"),
	})
	assert.ErrorContains(t, err, "open log file")
}
