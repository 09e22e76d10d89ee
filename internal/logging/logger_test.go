package logging_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"carousel/internal/config"
	"carousel/internal/logging"
)

func TestNewFromConfigConsole(t *testing.T) {
	cfg := config.Default()
	cfg.Paths.LogDir = t.TempDir()

	logger, err := logging.NewFromConfig(&cfg)
	if err != nil {
		t.Fatalf("NewFromConfig returned error: %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger instance")
	}
	logger.Info("startup message")

	content, err := os.ReadFile(filepath.Join(cfg.Paths.LogDir, "carousel.log"))
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "startup message") {
		t.Fatalf("expected log file to contain message, got %q", content)
	}
}

func TestConsoleLoggerOmitsSourceForInfo(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-info.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("message without caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if strings.Contains(string(content), ".go:") {
		t.Fatalf("expected no source information in info logs, got %q", content)
	}
}

func TestConsoleLoggerIncludesSourceForDebug(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "console-debug.log")

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "debug",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Debug("message with caller")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), ".go:") {
		t.Fatalf("expected source information in debug logs, got %q", content)
	}
}

func TestJSONFormatWritesStructuredLines(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "daemon.log")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("import finished", logging.Args(logging.Int("uploaded", 42))...)

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	line := string(content)
	if !strings.Contains(line, `"msg":"import finished"`) {
		t.Fatalf("expected msg key in JSON output, got %q", line)
	}
	if !strings.Contains(line, `"uploaded":42`) {
		t.Fatalf("expected uploaded attr in JSON output, got %q", line)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	if _, err := logging.New(logging.Options{Format: "xml"}); err == nil {
		t.Fatal("expected error for unsupported format")
	}
}

func TestStreamOptionPublishesEvents(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "stream.log")
	hub := logging.NewStreamHub(16)

	logger, err := logging.New(logging.Options{
		Format:           "console",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
		Stream:           hub,
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("queued export", logging.Args(logging.String(logging.FieldExportName, "takeout-20240101"))...)

	events, _ := hub.Tail(10)
	if len(events) != 1 {
		t.Fatalf("expected 1 event in hub, got %d", len(events))
	}
	if events[0].Message != "queued export" {
		t.Fatalf("unexpected event message %q", events[0].Message)
	}
}

func TestSessionIDAppearsInOutput(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "session.log")

	logger, err := logging.New(logging.Options{
		Format:           "json",
		Level:            "info",
		OutputPaths:      []string{logPath},
		ErrorOutputPaths: []string{logPath},
		SessionID:        "abc-123",
	})
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}

	logger.Info("diagnostic line")

	content, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(content), "abc-123") {
		t.Fatalf("expected session id in output, got %q", content)
	}
}
