package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_Formats(t *testing.T) {
	tests := []struct {
		format string
		check  func(t *testing.T, out string)
	}{
		{"json", func(t *testing.T, out string) {
			var entry map[string]any
			if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &entry); err != nil {
				t.Fatalf("output is not JSON: %v (%q)", err, out)
			}
			if entry["msg"] != "matched" || entry["score"] != 0.5 {
				t.Errorf("unexpected entry: %v", entry)
			}
		}},
		{"text", func(t *testing.T, out string) {
			if !strings.Contains(out, "msg=matched") || !strings.Contains(out, "score=0.5") {
				t.Errorf("unexpected text output: %q", out)
			}
		}},
		{"console", func(t *testing.T, out string) {
			if !strings.Contains(out, "matched") || !strings.Contains(out, "score=0.5") {
				t.Errorf("unexpected console output: %q", out)
			}
			if strings.Contains(out, "\x1b[") {
				t.Errorf("console output should not be colored: %q", out)
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := New(Options{Format: tt.format, Output: &buf, NoColor: true})
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			logger.Info("matched", "score", 0.5)
			tt.check(t, buf.String())
		})
	}
}

func TestNew_Level(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(Options{Level: "warn", Format: "text", Output: &buf})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "shown") {
		t.Error("warn message should be logged")
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New(Options{Format: "xml"}); err == nil {
		t.Error("unknown format should fail")
	}
	if _, err := New(Options{Level: "verbose"}); err == nil {
		t.Error("unknown level should fail")
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"info":    slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		" warn ":  slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q): got (%v, %v), want %v", in, got, err, want)
		}
	}
}

func TestDiscard(t *testing.T) {
	if Discard().Enabled(context.Background(), slog.LevelError) {
		t.Error("discard logger should not be enabled")
	}
}
