// Package persona manages the system prompts that configure the generation service
// for summarization and clustering.
package persona

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Well-known persona names.
const (
	Summarizer = "summarizer"
	Grouper    = "grouper"
)

// Persona is a named system prompt with its generation settings.
type Persona struct {
	Name         string  `yaml:"name"`
	Description  string  `yaml:"description"`
	Model        string  `yaml:"model"`
	SystemPrompt string  `yaml:"system_prompt"`
	Temperature  float64 `yaml:"temperature"`
}

// File is the top-level YAML structure.
type File struct {
	Personas []FileEntry `yaml:"personas"`
}

// FileEntry is one persona as written in YAML. Empty fields and a nil Temperature
// inherit from the built-in persona of the same name.
type FileEntry struct {
	Temperature  *float64 `yaml:"temperature"`
	Name         string   `yaml:"name"`
	Description  string   `yaml:"description"`
	Model        string   `yaml:"model"`
	SystemPrompt string   `yaml:"system_prompt"`
}

// Registry holds personas keyed by name.
type Registry struct {
	byName map[string]*Persona
	order  []string // definition order, built-ins first
}

// Builtin returns a registry holding only the built-in personas.
func Builtin() *Registry {
	r := &Registry{byName: make(map[string]*Persona)}
	for _, p := range builtins() {
		r.put(p)
	}
	return r
}

// Load reads persona overrides from the YAML file at path on top of the built-ins.
// A missing file yields the built-ins, not an error.
func Load(path string) (*Registry, error) {
	r := Builtin()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, err
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse personas %s: %w", path, err)
	}

	for _, e := range f.Personas {
		if strings.TrimSpace(e.Name) == "" {
			return nil, fmt.Errorf("parse personas %s: persona without name", path)
		}
		base := Persona{Name: e.Name}
		if b, ok := r.byName[e.Name]; ok {
			base = *b
		}
		p := merge(base, e)
		if strings.TrimSpace(p.SystemPrompt) == "" {
			return nil, fmt.Errorf("parse personas %s: persona %q has an empty system prompt", path, p.Name)
		}
		r.put(p)
	}
	return r, nil
}

// merge applies the fields set in e on top of base.
func merge(base Persona, e FileEntry) Persona {
	p := base
	if e.Description != "" {
		p.Description = e.Description
	}
	if e.Model != "" {
		p.Model = e.Model
	}
	if e.SystemPrompt != "" {
		p.SystemPrompt = e.SystemPrompt
	}
	if e.Temperature != nil {
		p.Temperature = *e.Temperature
	}
	return p
}

func (r *Registry) put(p Persona) {
	if _, exists := r.byName[p.Name]; !exists {
		r.order = append(r.order, p.Name)
	}
	cp := p
	r.byName[p.Name] = &cp
}

// Get returns a persona by name. Returns (Persona{}, false) if not found.
func (r *Registry) Get(name string) (Persona, bool) {
	p, ok := r.byName[name]
	if !ok {
		return Persona{}, false
	}
	return *p, true
}

// MustGet returns a persona known to be registered.
func (r *Registry) MustGet(name string) Persona {
	p, ok := r.Get(name)
	if !ok {
		panic("persona not registered: " + name)
	}
	return p
}

// All returns all personas in definition order.
func (r *Registry) All() []Persona {
	result := make([]Persona, 0, len(r.order))
	for _, name := range r.order {
		result = append(result, *r.byName[name])
	}
	return result
}

// Names returns a sorted list of persona names.
func (r *Registry) Names() []string {
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}
