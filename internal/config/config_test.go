package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chdirTemp runs the test from an empty directory so no stray .env is picked up.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("TP_NUM_OF_THREADS", "")
	t.Setenv("NUTRISTAT_RESULT_BACKEND", "")
	t.Setenv("NUTRISTAT_POLL_TIMEOUT", "")

	cfg := Load()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, runtime.NumCPU(), cfg.NumWorkers)
	assert.Equal(t, time.Second, cfg.PollTimeout)
	assert.Equal(t, BackendFile, cfg.ResultBackend)
	assert.Equal(t, "results", cfg.ResultsDir)
	assert.False(t, cfg.WipeResults)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 5, cfg.LogMaxBackups)
}

func TestLoadWorkerOverride(t *testing.T) {
	chdirTemp(t)

	tests := []struct {
		value string
		want  int
	}{
		{"3", 3},
		{"0", runtime.NumCPU()},
		{"-2", runtime.NumCPU()},
		{"many", runtime.NumCPU()},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Setenv("TP_NUM_OF_THREADS", tt.value)
			assert.Equal(t, tt.want, Load().NumWorkers)
		})
	}
}

func TestLoadReadsDotEnv(t *testing.T) {
	dir := chdirTemp(t)
	// godotenv never overrides variables that exist, even empty ones
	for _, key := range []string{"NUTRISTAT_RESULTS_DIR", "NUTRISTAT_RESULT_BACKEND"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("NUTRISTAT_RESULTS_DIR=/tmp/from-dotenv\nNUTRISTAT_RESULT_BACKEND=Redis\n"), 0o644))

	cfg := Load()

	assert.Equal(t, "/tmp/from-dotenv", cfg.ResultsDir)
	assert.Equal(t, BackendRedis, cfg.ResultBackend)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("Error"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("verbose"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("job created", "job_id", "job_id_1")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "job_id=job_id_1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(file.Bytes()), &entry))
	assert.Equal(t, "job created", entry["msg"])
	assert.Equal(t, "job_id_1", entry["job_id"])
}

func TestSetupLoggerWritesFile(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		LogFile:       filepath.Join(dir, "server.log"),
		LogLevel:      slog.LevelInfo,
		LogMaxSizeMB:  1,
		LogMaxBackups: 2,
	}

	logger, cleanup := SetupLogger(cfg)
	logger.Info("hello", "port", "5000")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), `"msg":"hello"`), "log file should contain JSON entry: %s", data)
}
