// Package config loads nutristat settings from the environment.
package config

import (
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Result store backends.
const (
	BackendFile      = "file"
	BackendSurrealDB = "surrealdb"
	BackendRedis     = "redis"
)

// Config holds all configuration values.
type Config struct {
	// HTTP server
	Port string

	// Worker pool
	NumWorkers  int
	PollTimeout time.Duration

	// Dataset
	DatasetPath string

	// Result store
	ResultBackend string
	ResultsDir    string
	WipeResults   bool

	// SurrealDB connection (surrealdb backend)
	SurrealDBURL       string
	SurrealDBNamespace string
	SurrealDBDatabase  string
	SurrealDBUser      string
	SurrealDBPass      string
	SurrealDBAuthLevel string

	// Redis connection (redis backend)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Logging
	LogFile       string
	LogLevel      slog.Level
	LogMaxSizeMB  int
	LogMaxBackups int
}

// Load reads configuration from environment variables.
// A .env file in the working directory is applied first if present;
// variables already set in the environment win.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file loaded", "error", err)
	}

	return Config{
		Port: getEnv("NUTRISTAT_SERVER_PORT", "5000"),

		// Historical variable name, kept for existing deployments
		NumWorkers:  getEnvAsPositiveInt("TP_NUM_OF_THREADS", runtime.NumCPU()),
		PollTimeout: getEnvAsDuration("NUTRISTAT_POLL_TIMEOUT", time.Second),

		DatasetPath: getEnv("NUTRISTAT_DATASET", "./dataset.csv"),

		ResultBackend: strings.ToLower(getEnv("NUTRISTAT_RESULT_BACKEND", BackendFile)),
		ResultsDir:    getEnv("NUTRISTAT_RESULTS_DIR", "results"),
		WipeResults:   getEnv("NUTRISTAT_WIPE_RESULTS", "false") == "true",

		SurrealDBURL:       getEnv("SURREALDB_URL", "ws://localhost:8000/rpc"),
		SurrealDBNamespace: getEnv("SURREALDB_NAMESPACE", "nutristat"),
		SurrealDBDatabase:  getEnv("SURREALDB_DATABASE", "results"),
		SurrealDBUser:      getEnv("SURREALDB_USER", "root"),
		SurrealDBPass:      getEnv("SURREALDB_PASS", "root"),
		SurrealDBAuthLevel: getEnv("SURREALDB_AUTH_LEVEL", "root"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		LogFile:       getEnv("NUTRISTAT_LOG_FILE", "webserver.log"),
		LogLevel:      parseLogLevel(getEnv("NUTRISTAT_LOG_LEVEL", "INFO")),
		LogMaxSizeMB:  getEnvAsPositiveInt("NUTRISTAT_LOG_MAX_SIZE_MB", 1),
		LogMaxBackups: getEnvAsPositiveInt("NUTRISTAT_LOG_MAX_BACKUPS", 5),
	}
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return defaultVal
}

// getEnvAsPositiveInt falls back to defaultVal for malformed, zero or negative values.
func getEnvAsPositiveInt(key string, defaultVal int) int {
	if n := getEnvAsInt(key, defaultVal); n > 0 {
		return n
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return defaultVal
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
