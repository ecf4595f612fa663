// Package config loads matcher, waiter and server settings from YAML.
//
// A missing file is not an error: every setting has a default, and the
// environment can override the log level and debug directory. Example:
//
//	match:
//	  threshold: 0.97
//	  channels: 3
//	  pyramid:
//	    levels: 2
//	    prune_threshold: 0.8
//	wait:
//	  interval: 250ms
//	  timeout: 30s
//	template_dir: ./templates
//	templates:
//	  - name: ok_button
//	    path: ok.png
//	    threshold: 0.95
//	    region: {x1: 0, y1: 600, x2: 800, y2: 800}
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ironsheep/image-match-mcp/internal/imaging"
	"github.com/ironsheep/image-match-mcp/internal/match"
)

// Environment variables read by Load.
const (
	EnvConfig   = "IMAGE_MCP_CONFIG"
	EnvLogLevel = "IMAGE_MCP_LOG_LEVEL"
	EnvDebugDir = "IMAGE_MCP_DEBUG_DIR"
)

// Config is the complete application configuration.
type Config struct {
	Match       MatchConfig          `yaml:"match"`
	Wait        WaitConfig           `yaml:"wait"`
	Capture     CaptureConfig        `yaml:"capture"`
	Debug       DebugConfig          `yaml:"debug"`
	Log         LogConfig            `yaml:"log"`
	TemplateDir string               `yaml:"template_dir"`
	Templates   []TemplateDefinition `yaml:"templates"`

	// BaseDir is the directory relative template paths resolve against:
	// the config file's directory, or the working directory.
	BaseDir string `yaml:"-"`
}

// MatchConfig tunes scoring and candidate selection.
type MatchConfig struct {
	Threshold float64 `yaml:"threshold"`
	Channels  int     `yaml:"channels"`
	Workers   int     `yaml:"workers"`

	// MinDistance between accepted candidates in multi-match searches.
	// 0 uses half the template's shorter side.
	MinDistance float64       `yaml:"min_distance"`
	Pyramid     match.Pyramid `yaml:"pyramid"`
}

// WaitConfig holds polling defaults.
type WaitConfig struct {
	Interval time.Duration `yaml:"interval"`
	Timeout  time.Duration `yaml:"timeout"`
}

// CaptureConfig selects the screen source.
type CaptureConfig struct {
	Display int `yaml:"display"`
}

// DebugConfig controls annotated debug images.
type DebugConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Dir       string `yaml:"dir"`
	LineWidth int    `yaml:"line_width"`
	BoxColor  string `yaml:"box_color"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TemplateDefinition is a named template entry in the config file.
type TemplateDefinition struct {
	Name      string     `yaml:"name"`
	Path      string     `yaml:"path"`
	Threshold float64    `yaml:"threshold,omitempty"`
	Region    *RegionDef `yaml:"region,omitempty"`
}

// RegionDef limits a template search to part of the source, using
// inclusive (x1,y1) and exclusive (x2,y2) corners.
type RegionDef struct {
	X1 int `yaml:"x1"`
	Y1 int `yaml:"y1"`
	X2 int `yaml:"x2"`
	Y2 int `yaml:"y2"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Match: MatchConfig{
			Threshold: match.DefaultThreshold,
			Channels:  imaging.RGB,
			Pyramid: match.Pyramid{
				Levels:          0,
				PruneThreshold:  0.8,
				MinTemplateSize: 8,
			},
		},
		Wait: WaitConfig{
			Interval: 100 * time.Millisecond,
			Timeout:  10 * time.Second,
		},
		Debug: DebugConfig{
			Dir:       "debug",
			LineWidth: 2,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
		BaseDir: ".",
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides and validates the result.
//
// An empty path falls back to IMAGE_MCP_CONFIG; when that is unset too the
// defaults are used.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
		cfg.BaseDir = filepath.Dir(path)
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		c.Log.Level = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvDebugDir)); v != "" {
		c.Debug.Enabled = true
		c.Debug.Dir = v
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Match.Threshold <= 0 || c.Match.Threshold > 1 {
		add("match.threshold %v must be in (0, 1]", c.Match.Threshold)
	}
	switch c.Match.Channels {
	case imaging.Gray, imaging.RGB, imaging.RGBA:
	default:
		add("match.channels %d must be 1, 3 or 4", c.Match.Channels)
	}
	if c.Match.Workers < 0 {
		add("match.workers %d must not be negative", c.Match.Workers)
	}
	if c.Match.MinDistance < 0 {
		add("match.min_distance %v must not be negative", c.Match.MinDistance)
	}
	p := c.Match.Pyramid
	if p.Levels < 0 {
		add("match.pyramid.levels %d must not be negative", p.Levels)
	}
	if p.PruneThreshold < 0 || p.PruneThreshold > 1 {
		add("match.pyramid.prune_threshold %v must be in [0, 1]", p.PruneThreshold)
	}
	if p.MinTemplateSize < 1 {
		add("match.pyramid.min_template_size %d must be at least 1", p.MinTemplateSize)
	}

	if c.Wait.Interval <= 0 {
		add("wait.interval %v must be positive", c.Wait.Interval)
	}
	if c.Wait.Timeout < 0 {
		add("wait.timeout %v must not be negative", c.Wait.Timeout)
	}
	if c.Capture.Display < 0 {
		add("capture.display %d must not be negative", c.Capture.Display)
	}
	if c.Debug.Enabled && c.Debug.Dir == "" {
		add("debug.dir is required when debug is enabled")
	}

	switch strings.ToLower(c.Log.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		add("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "console", "text", "json":
	default:
		add("log.format %q is not one of console, text, json", c.Log.Format)
	}

	seen := make(map[string]bool)
	for i, def := range c.Templates {
		if def.Name == "" {
			add("template %d: name cannot be empty", i+1)
			continue
		}
		if seen[def.Name] {
			add("template %q defined more than once", def.Name)
		}
		seen[def.Name] = true
		if def.Path == "" {
			add("template %d (%s): path cannot be empty", i+1, def.Name)
		}
		if def.Threshold < 0 || def.Threshold > 1 {
			add("template %q: threshold %v must be in [0, 1]", def.Name, def.Threshold)
		}
		if r := def.Region; r != nil && (r.X1 < 0 || r.Y1 < 0 || r.X1 >= r.X2 || r.Y1 >= r.Y2) {
			add("template %q: invalid region (%d,%d)-(%d,%d)", def.Name, r.X1, r.Y1, r.X2, r.Y2)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
