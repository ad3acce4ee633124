// Package logging configures the structured JSON logs a publication run
// emits. Logs go to stderr by default; a file destination is opt-in through
// configuration, with old files rolled to numbered backups between runs.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config describes the log destinations for one run.
type Config struct {
	// Level is the minimum log level (debug, info, warn, error).
	Level string
	// File receives the JSON records when set. Empty logs to stderr only.
	File string
	// MaxSizeMB caps the file size. An oversized file rolls over when the
	// next run opens it.
	MaxSizeMB int
	// Backups is how many rolled files to keep as <file>.1 .. <file>.N.
	Backups int
	// Stderr mirrors records to stderr alongside the file.
	Stderr bool
}

// DefaultConfig logs to stderr only at info level.
func DefaultConfig() Config {
	return Config{
		Level:     "info",
		MaxSizeMB: 10,
		Backups:   5,
		Stderr:    true,
	}
}

// Setup builds the run logger and returns it with a cleanup function that
// flushes and closes the log file, if any.
func Setup(cfg Config) (*slog.Logger, func(), error) {
	var output io.Writer = os.Stderr
	cleanup := func() {}

	if cfg.File != "" {
		maxBytes := int64(cfg.MaxSizeMB) * 1024 * 1024
		f, err := openRunFile(cfg.File, maxBytes, cfg.Backups)
		if err != nil {
			return nil, nil, err
		}
		output = f
		if cfg.Stderr {
			output = io.MultiWriter(f, os.Stderr)
		}
		cleanup = func() {
			_ = f.Sync()
			_ = f.Close()
		}
	}

	handler := slog.NewJSONHandler(output, &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	})
	return slog.New(handler), cleanup, nil
}

// parseLevel converts a string level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
