package logging

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		level    LogLevel
		expected string
	}{
		{"debug level", LevelDebug, "debug"},
		{"info level", LevelInfo, "info"},
		{"warn level", LevelWarn, "warn"},
		{"error level", LevelError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if string(tt.level) != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, string(tt.level))
			}
		})
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Level != LevelInfo {
		t.Errorf("Expected default level %s, got %s", LevelInfo, cfg.Level)
	}
	if cfg.Format != FormatText {
		t.Errorf("Expected default format %s, got %s", FormatText, cfg.Format)
	}
	if cfg.Output != "stderr" {
		t.Errorf("Expected default output 'stderr', got '%s'", cfg.Output)
	}
	if cfg.AddSource {
		t.Error("Expected AddSource to be false by default")
	}
}

func TestNewWithFileOutput(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "logs", "posture.log")

	logger, err := New(Config{Level: LevelInfo, Format: FormatJSON, Output: path})
	if err != nil {
		t.Fatalf("New() with file output failed: %v", err)
	}
	logger.Info("written to file")
}

func TestJSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, LevelDebug)
	logger.Info("hello")
	if !strings.Contains(buf.String(), "hello") {
		t.Errorf("Expected output to contain message, got %q", buf.String())
	}

	buf.Reset()
	l := &Logger{
		Logger: slog.New(slog.NewJSONHandler(&buf, nil)),
		config: Config{Format: FormatJSON},
	}
	l.InfoScan("scan started", "db01.internal", "family", "debian")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Log line is not valid JSON: %v", err)
	}
	if entry["target"] != "db01.internal" {
		t.Errorf("Expected target field, got %v", entry["target"])
	}
	if entry["family"] != "debian" {
		t.Errorf("Expected family field, got %v", entry["family"])
	}
}

func TestDebugProbeLevel(t *testing.T) {
	var buf bytes.Buffer

	// Info-level logger must suppress probe output.
	logger := NewWriter(&buf, LevelInfo)
	logger.DebugProbe("probe failed", "web01", "lsb_release -a")
	if buf.Len() != 0 {
		t.Errorf("Probe failures should be debug-only, got output: %q", buf.String())
	}

	// Debug-level logger must include command context.
	debugLogger := NewWriter(&buf, LevelDebug)
	debugLogger.DebugProbe("probe failed", "web01", "lsb_release -a", "error", fmt.Errorf("exit 127"))
	out := buf.String()
	if !strings.Contains(out, "lsb_release -a") {
		t.Errorf("Expected command in probe log, got %q", out)
	}
	if !strings.Contains(out, "web01") {
		t.Errorf("Expected target in probe log, got %q", out)
	}
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, LevelDebug)

	logger.WithComponent("detector").Info("component log")
	if !strings.Contains(buf.String(), "component=detector") {
		t.Errorf("Expected component field, got %q", buf.String())
	}

	buf.Reset()
	logger.WithTarget("10.0.0.5").WithError(fmt.Errorf("boom")).Warn("target log")
	out := buf.String()
	if !strings.Contains(out, "10.0.0.5") || !strings.Contains(out, "boom") {
		t.Errorf("Expected target and error fields, got %q", out)
	}
}

func TestDefaultLoggerReplacement(t *testing.T) {
	original := Default()
	defer SetDefault(original)

	var buf bytes.Buffer
	SetDefault(NewWriter(&buf, LevelDebug))

	Info("via package function")
	if !strings.Contains(buf.String(), "via package function") {
		t.Errorf("Package-level logging should go through the replaced default, got %q", buf.String())
	}
}
