package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestNewLoggerWithWriter_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "text", &buf)

	logger.Info("service registered", "name", "sapporo")

	output := buf.String()
	if !strings.Contains(output, "service registered") {
		t.Errorf("expected 'service registered' in output, got: %s", output)
	}
	if !strings.Contains(output, "name=sapporo") {
		t.Errorf("expected 'name=sapporo' in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelInfo, "json", &buf)

	logger.Info("service registered", "name", "sapporo")

	output := buf.String()
	if !strings.Contains(output, `"msg":"service registered"`) {
		t.Errorf("expected JSON msg field in output, got: %s", output)
	}
	if !strings.Contains(output, `"name":"sapporo"`) {
		t.Errorf("expected JSON name field in output, got: %s", output)
	}
}

func TestNewLoggerWithWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelWarn, "text", &buf)

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Errorf("INFO message should be filtered at WARN level, got: %s", output)
	}
	if !strings.Contains(output, "should appear") {
		t.Errorf("WARN message should appear at WARN level, got: %s", output)
	}
}

func TestNewLoggerWithWriter_ChildLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(slog.LevelDebug, "text", &buf)
	child := logger.With("component", "poller")

	child.Debug("tick complete", "service_id", "svc_abc")

	output := buf.String()
	if !strings.Contains(output, "component=poller") {
		t.Errorf("expected component in output, got: %s", output)
	}
	if !strings.Contains(output, "service_id=svc_abc") {
		t.Errorf("expected service_id in output, got: %s", output)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"unknown", slog.LevelInfo},
		{"", slog.LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseLevelStrict(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr bool
	}{
		{"debug", slog.LevelDebug, false},
		{"INFO", slog.LevelInfo, false},
		{"", slog.LevelInfo, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"trace", slog.LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevelStrict(tt.in)
		if got != tt.want || (err != nil) != tt.wantErr {
			t.Errorf("ParseLevelStrict(%q) = %v, %v", tt.in, got, err)
		}
		if ParseLevel(tt.in) != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, ParseLevel(tt.in), tt.want)
		}
	}
}

func TestValidFormat(t *testing.T) {
	for format, want := range map[string]bool{"text": true, "JSON": true, "xml": false, "": false} {
		if got := ValidFormat(format); got != want {
			t.Errorf("ValidFormat(%q) = %v, want %v", format, got, want)
		}
	}
}
