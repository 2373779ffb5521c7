// Package logging configures the process-wide slog logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds logging configuration.
type Config struct {
	Format string // "json" | "text"
	Level  string // "debug" | "info" | "warn" | "error"
	Output io.Writer
}

// Setup installs the global slog logger. It is safe to call more than once;
// the last call wins and no handlers accumulate.
func Setup(cfg Config) {
	slog.SetDefault(slog.New(newHandler(cfg)))
}

func newHandler(cfg Config) slog.Handler {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	opts := &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	}

	switch strings.ToLower(cfg.Format) {
	case "json":
		return slog.NewJSONHandler(out, opts)
	default:
		return slog.NewTextHandler(out, opts)
	}
}

// ParseLevel converts a string level to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Component returns a logger with a component name. Call it where the logger
// is used rather than at package init so it picks up the handler from Setup.
func Component(name string) *slog.Logger {
	return slog.With("component", name)
}

// RunLogger creates a logger carrying the run identity.
func RunLogger(runID, source string) *slog.Logger {
	return slog.With("run_id", runID, "source", source)
}
