package config

import (
	"io"
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
	"gopkg.in/natefinch/lumberjack.v2"
)

// SetupLogger creates a dual-output logger: text to stderr, JSON to a
// size-rotated log file. Returns the logger and a cleanup function that
// closes the file.
func SetupLogger(cfg Config) (*slog.Logger, func() error) {
	stderrHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})

	if cfg.LogFile == "" {
		return slog.New(stderrHandler), func() error { return nil }
	}

	// lumberjack opens lazily and creates the file on first write
	rotator := &lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
	}

	fileHandler := slog.NewJSONHandler(rotator, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})

	logger := slog.New(slogmulti.Fanout(stderrHandler, fileHandler))

	return logger, rotator.Close
}

// SetupLoggerWithWriters creates a logger with custom writers (for testing).
func SetupLoggerWithWriters(stderr, file io.Writer, level slog.Level) *slog.Logger {
	stderrHandler := slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})
	fileHandler := slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level})
	return slog.New(slogmulti.Fanout(stderrHandler, fileHandler))
}
