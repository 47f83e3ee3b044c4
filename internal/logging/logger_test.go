package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/masahif/rebrandcrawl/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected slog.Level
	}{
		{"debug level", "debug", slog.LevelDebug},
		{"info level", "info", slog.LevelInfo},
		{"warn level", "warn", slog.LevelWarn},
		{"warning level", "warning", slog.LevelWarn},
		{"error level", "error", slog.LevelError},
		{"uppercase DEBUG", "DEBUG", slog.LevelDebug},
		{"padded", " error ", slog.LevelError},
		{"invalid level", "invalid", slog.LevelInfo}, // defaults to info
		{"empty string", "", slog.LevelInfo},          // defaults to info
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ParseLevel(tt.input)
			if result != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, result, tt.expected)
			}
		})
	}
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.DefaultConfig().Log)

	if cfg.Level != slog.LevelInfo {
		t.Errorf("Level = %v, want %v", cfg.Level, slog.LevelInfo)
	}
	if cfg.FilePath != filepath.Join("crawler", "crawler.log") {
		t.Errorf("FilePath = %q, want crawler/crawler.log", cfg.FilePath)
	}
	if cfg.MaxSize != 100 || cfg.MaxBackups != 5 {
		t.Errorf("Unexpected rotation settings: %d MB, %d backups", cfg.MaxSize, cfg.MaxBackups)
	}
	if cfg.Console == nil {
		t.Error("Expected console output by default")
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		var buf bytes.Buffer
		logger, closer, err := NewLogger(Config{Level: slog.LevelInfo, Console: &buf})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		defer closer.Close()

		logger.Info("Processing", "url", "http://x.com/")
		logger.Debug("hidden")

		var record map[string]any
		if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &record); err != nil {
			t.Fatalf("Expected a single JSON record, got %q: %v", buf.String(), err)
		}
		if record["msg"] != "Processing" || record["url"] != "http://x.com/" {
			t.Errorf("Unexpected record: %v", record)
		}
	})

	t.Run("file output", func(t *testing.T) {
		logFile := filepath.Join(t.TempDir(), "nested", "crawler.log")

		logger, closer, err := NewLogger(Config{
			Level:      slog.LevelDebug,
			FilePath:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
		})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}

		logger.Debug("test message")
		if err := closer.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}

		content, err := os.ReadFile(logFile)
		if err != nil {
			t.Fatalf("Log file was not created at %s: %v", logFile, err)
		}
		if !strings.Contains(string(content), `"msg":"test message"`) {
			t.Errorf("Unexpected log content: %s", content)
		}
	})

	t.Run("both console and file", func(t *testing.T) {
		var buf bytes.Buffer
		logFile := filepath.Join(t.TempDir(), "crawler.log")

		logger, closer, err := NewLogger(Config{
			Level:      slog.LevelInfo,
			FilePath:   logFile,
			MaxSize:    10,
			MaxBackups: 3,
			Console:    &buf,
		})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		logger.Info("both")
		_ = closer.Close()

		content, _ := os.ReadFile(logFile)
		if !strings.Contains(buf.String(), "both") || !strings.Contains(string(content), "both") {
			t.Error("Expected record in both outputs")
		}
	})

	t.Run("no outputs configured defaults to stderr", func(t *testing.T) {
		logger, closer, err := NewLogger(Config{Level: slog.LevelInfo})
		if err != nil {
			t.Fatalf("NewLogger failed: %v", err)
		}
		if logger == nil || closer == nil {
			t.Fatal("NewLogger returned nil")
		}
	})

	t.Run("unwritable file path", func(t *testing.T) {
		blocker := filepath.Join(t.TempDir(), "file")
		if err := os.WriteFile(blocker, nil, 0o644); err != nil {
			t.Fatal(err)
		}
		if _, _, err := NewLogger(Config{FilePath: filepath.Join(blocker, "crawler.log")}); err == nil {
			t.Error("Expected error when the log directory cannot be created")
		}
	})
}
