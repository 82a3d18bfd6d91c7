package logger

import (
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
	"github.com/family-finance-ledger/internal/config"
)

// NewLogger creates the JSON slog.Logger used by the services
func NewLogger(cfg *config.Config) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	handler := slog.NewJSONHandler(os.Stdout, opts)
	logger := slog.New(handler).With("app", cfg.Application.Name)

	logger.Info("logger initialized", "level", level)

	return logger
}

// NewConsoleLogger creates a human-readable slog.Logger for the operator CLI.
// Output goes to stderr so stdout stays machine-readable.
func NewConsoleLogger(levelName string) *slog.Logger {
	level := parseLevel(levelName)

	handler := charmlog.NewWithOptions(os.Stderr, charmlog.Options{
		ReportTimestamp: true,
		ReportCaller:    level == slog.LevelDebug,
		Prefix:          "statementctl",
		Level:           charmlog.Level(level),
	})

	return slog.New(handler)
}

func parseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
