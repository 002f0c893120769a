package main

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lmittmann/tint"

	"github.com/elee1766/orbital/src/config"
)

// createChatLogger creates a logger that doesn't interfere with the chat
// by writing to a file instead of stdout/stderr
func createChatLogger(logLevel string) *slog.Logger {
	logDir := config.GetDefaultStoragePaths().LogDir
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return discardLogger()
	}

	file, err := os.OpenFile(filepath.Join(logDir, "orbital.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return discardLogger()
	}

	return slog.New(slog.NewJSONHandler(file, &slog.HandlerOptions{
		Level: parseLogLevel(logLevel),
	}))
}

// createCLILogger creates a logger for CLI commands that can write to stderr
func createCLILogger(logLevel string) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level: parseLogLevel(logLevel),
	}))
}

// createServerLogger logs to stderr in the configured format
func createServerLogger(logLevel, format string) *slog.Logger {
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level: parseLogLevel(logLevel),
		}))
	}
	return createCLILogger(logLevel)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// parseLogLevel converts string log level to slog.Level
func parseLogLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
