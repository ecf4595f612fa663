package config

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ironsheep/image-match-mcp/internal/match"
)

// Template is a resolved, ready-to-load template entry.
type Template struct {
	Name      string        `json:"name"`
	Path      string        `json:"path"`
	Threshold float64       `json:"threshold"`
	Region    *match.Region `json:"region,omitempty"`
}

// Registry maps template names to files. It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]Template
	baseDir   string
	threshold float64
}

// NewRegistry builds a registry from the configured templates.
//
// Relative paths resolve against TemplateDir, which itself resolves
// against the config file's directory. Entries without a threshold use
// the configured match threshold.
func NewRegistry(cfg *Config) *Registry {
	base := cfg.TemplateDir
	if base == "" {
		base = cfg.BaseDir
	} else if !filepath.IsAbs(base) {
		base = filepath.Join(cfg.BaseDir, base)
	}

	r := &Registry{
		templates: make(map[string]Template, len(cfg.Templates)),
		baseDir:   base,
		threshold: cfg.Match.Threshold,
	}
	for _, def := range cfg.Templates {
		t := Template{Name: def.Name, Path: r.resolve(def.Path), Threshold: def.Threshold}
		if t.Threshold == 0 {
			t.Threshold = r.threshold
		}
		if def.Region != nil {
			t.Region = &match.Region{
				X:      def.Region.X1,
				Y:      def.Region.Y1,
				Width:  def.Region.X2 - def.Region.X1,
				Height: def.Region.Y2 - def.Region.Y1,
			}
		}
		r.templates[t.Name] = t
	}
	return r
}

func (r *Registry) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.baseDir, path)
}

// Dir returns the directory relative template paths resolve against.
func (r *Registry) Dir() string {
	return r.baseDir
}

// Get retrieves a template by name.
func (r *Registry) Get(name string) (Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.templates[name]
	return t, ok
}

// Register adds or replaces a template. A relative path resolves against
// the registry directory and a zero threshold takes the default.
func (r *Registry) Register(t Template) (Template, error) {
	if t.Name == "" {
		return Template{}, fmt.Errorf("template name cannot be empty")
	}
	if t.Path == "" {
		return Template{}, fmt.Errorf("template %s: path cannot be empty", t.Name)
	}
	t.Path = r.resolve(t.Path)
	if t.Threshold == 0 {
		t.Threshold = r.threshold
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.templates[t.Name] = t
	return t, nil
}

// List returns all templates sorted by name.
func (r *Registry) List() []Template {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]Template, 0, len(r.templates))
	for _, t := range r.templates {
		list = append(list, t)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}

// Count returns the number of templates.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.templates)
}
