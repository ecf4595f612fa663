package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ironsheep/image-match-mcp/internal/match"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Match.Threshold != 0.99 {
		t.Errorf("threshold: got %v, want 0.99", cfg.Match.Threshold)
	}
	if cfg.Match.Channels != 3 {
		t.Errorf("channels: got %d, want 3", cfg.Match.Channels)
	}
	if cfg.Wait.Interval != 100*time.Millisecond || cfg.Wait.Timeout != 10*time.Second {
		t.Errorf("wait: got %v/%v, want 100ms/10s", cfg.Wait.Interval, cfg.Wait.Timeout)
	}
	if cfg.Match.Pyramid.Levels != 0 {
		t.Errorf("pyramid should be off by default, got %d levels", cfg.Match.Pyramid.Levels)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should be valid: %v", err)
	}
}

func TestLoad_YAML(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvDebugDir, "")

	dir := t.TempDir()
	path := writeConfig(t, dir, `
match:
  threshold: 0.95
  channels: 1
  workers: 2
  pyramid:
    levels: 2
    prune_threshold: 0.7
    min_template_size: 6
wait:
  interval: 250ms
  timeout: 30s
log:
  format: json
template_dir: templates
templates:
  - name: ok_button
    path: ok.png
    threshold: 0.9
    region: {x1: 10, y1: 20, x2: 110, y2: 70}
  - name: logo
    path: /abs/logo.png
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Match.Threshold != 0.95 || cfg.Match.Channels != 1 || cfg.Match.Workers != 2 {
		t.Errorf("match: got %+v", cfg.Match)
	}
	want := match.Pyramid{Levels: 2, PruneThreshold: 0.7, MinTemplateSize: 6}
	if cfg.Match.Pyramid != want {
		t.Errorf("pyramid: got %+v, want %+v", cfg.Match.Pyramid, want)
	}
	if cfg.Wait.Interval != 250*time.Millisecond || cfg.Wait.Timeout != 30*time.Second {
		t.Errorf("wait: got %+v", cfg.Wait)
	}
	if cfg.Log.Format != "json" || cfg.Log.Level != "info" {
		t.Errorf("log: got %+v, want json format with default level", cfg.Log)
	}
	if cfg.BaseDir != dir {
		t.Errorf("BaseDir: got %q, want %q", cfg.BaseDir, dir)
	}
	if len(cfg.Templates) != 2 {
		t.Fatalf("templates: got %d, want 2", len(cfg.Templates))
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvDebugDir, "")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Match.Threshold != Defaults().Match.Threshold {
		t.Errorf("expected defaults, got %+v", cfg.Match)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir, "log:\n  level: warn\n")

	t.Setenv(EnvConfig, path)
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvDebugDir, filepath.Join(dir, "dbg"))

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("log level: got %q, want debug", cfg.Log.Level)
	}
	if !cfg.Debug.Enabled || cfg.Debug.Dir != filepath.Join(dir, "dbg") {
		t.Errorf("debug: got %+v", cfg.Debug)
	}
}

func TestLoad_Errors(t *testing.T) {
	t.Setenv(EnvLogLevel, "")
	t.Setenv(EnvDebugDir, "")
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "match: [", "failed to parse"},
		{"threshold", "match:\n  threshold: 1.5\n", "match.threshold"},
		{"channels", "match:\n  channels: 2\n", "match.channels"},
		{"interval", "wait:\n  interval: 0s\n", "wait.interval"},
		{"bad duration", "wait:\n  timeout: soon\n", "failed to parse"},
		{"prune", "match:\n  pyramid:\n    prune_threshold: 2\n", "prune_threshold"},
		{"log format", "log:\n  format: xml\n", "log.format"},
		{"duplicate template", "templates:\n  - {name: a, path: a.png}\n  - {name: a, path: b.png}\n", "more than once"},
		{"template path", "templates:\n  - {name: a}\n", "path cannot be empty"},
		{"template region", "templates:\n  - {name: a, path: a.png, region: {x1: 5, y1: 0, x2: 5, y2: 9}}\n", "invalid region"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, dir, tt.content)
			_, err := Load(path)
			if err == nil {
				t.Fatal("Load should fail")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should mention %q", err, tt.wantErr)
			}
		})
	}

	if _, err := Load(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestValidate_ReportsAllErrors(t *testing.T) {
	cfg := Defaults()
	cfg.Match.Threshold = 0
	cfg.Wait.Timeout = -time.Second
	cfg.Capture.Display = -1

	err := cfg.Validate()
	if err == nil {
		t.Fatal("Validate should fail")
	}
	for _, want := range []string{"match.threshold", "wait.timeout", "capture.display"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}
