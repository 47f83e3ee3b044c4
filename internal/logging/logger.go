// Package logging builds the process-wide slog logger: JSON records to the
// console and to a size-rotated log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/masahif/rebrandcrawl/internal/config"
)

// Config represents the logging configuration
type Config struct {
	Level      slog.Level
	FilePath   string    // Empty disables the file output
	MaxSize    int64     // MB
	MaxBackups int
	Console    io.Writer // nil disables the console output
}

// FromConfig converts the crawl configuration's log section
func FromConfig(c config.LogConfig) Config {
	return Config{
		Level:      ParseLevel(c.Level),
		FilePath:   c.File,
		MaxSize:    c.MaxSizeMB,
		MaxBackups: c.MaxBackups,
		Console:    os.Stderr,
	}
}

// ParseLevel converts a string log level to slog.Level. Unknown values
// fall back to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// NewLogger creates a logger and returns the closer for its file output.
// With no output configured, records go to stderr.
func NewLogger(cfg Config) (*slog.Logger, io.Closer, error) {
	var writers []io.Writer
	var closer io.Closer = nopCloser{}

	if cfg.Console != nil {
		writers = append(writers, cfg.Console)
	}

	if cfg.FilePath != "" {
		fileWriter, err := NewRotatingFileWriter(cfg.FilePath, cfg.MaxSize*1024*1024, cfg.MaxBackups)
		if err != nil {
			return nil, nil, err
		}
		writers = append(writers, fileWriter)
		closer = fileWriter
	}

	if len(writers) == 0 {
		writers = append(writers, os.Stderr)
	}

	handler := slog.NewJSONHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: cfg.Level,
	})

	return slog.New(handler), closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
