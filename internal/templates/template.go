// Package templates holds the fixed registry of structural query templates.
// Templates are the only path by which request-derived values reach the
// storage layer, so every parameter is validated against its declared type
// before execution.
package templates

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
)

// ParamType is the declared type of a template parameter.
type ParamType string

const (
	ParamString     ParamType = "string"
	ParamStringList ParamType = "string_list"
	ParamInt        ParamType = "int"
)

// Param declares one template parameter.
type Param struct {
	Name        string    `yaml:"name" json:"name"`
	Type        ParamType `yaml:"type" json:"type"`
	Required    bool      `yaml:"required" json:"required"`
	Description string    `yaml:"description" json:"description"`
}

// Template is a named structural query with typed parameters.
type Template struct {
	Name        string  `yaml:"name" json:"name"`
	Description string  `yaml:"description" json:"description"`
	UseCase     string  `yaml:"use_case" json:"use_case"`
	Params      []Param `yaml:"params" json:"params"`
	Query       string  `yaml:"query" json:"-"`
}

// Validate checks params against the template's declared schema. It returns
// one message per violated constraint, not just the first, so callers can
// report everything wrong with a request at once. An empty slice means valid.
func (t *Template) Validate(params map[string]any) []string {
	var errs []string

	for _, schema := range t.Params {
		value, present := params[schema.Name]
		if !present || value == nil {
			if schema.Required {
				errs = append(errs, fmt.Sprintf("missing required parameter: %s", schema.Name))
			}
			continue
		}

		switch schema.Type {
		case ParamString:
			s, ok := value.(string)
			if !ok {
				errs = append(errs, fmt.Sprintf("parameter %q must be a string", schema.Name))
			} else if strings.TrimSpace(s) == "" {
				errs = append(errs, fmt.Sprintf("parameter %q cannot be empty", schema.Name))
			}

		case ParamStringList:
			list, ok := asList(value)
			if !ok {
				errs = append(errs, fmt.Sprintf("parameter %q must be a list", schema.Name))
			} else if len(list) == 0 {
				errs = append(errs, fmt.Sprintf("parameter %q cannot be empty", schema.Name))
			} else if !allStrings(list) {
				errs = append(errs, fmt.Sprintf("parameter %q must be a list of strings", schema.Name))
			}

		case ParamInt:
			if !isInt(value) {
				errs = append(errs, fmt.Sprintf("parameter %q must be an integer", schema.Name))
			}
		}
	}

	return errs
}

// Args flattens a validated parameter map into positional query arguments,
// ordered by the template's declared parameter order.
func (t *Template) Args(params map[string]any) []any {
	args := make([]any, 0, len(t.Params))
	for _, schema := range t.Params {
		args = append(args, params[schema.Name])
	}
	return args
}

func asList(v any) ([]any, bool) {
	switch list := v.(type) {
	case []any:
		return list, true
	case []string:
		out := make([]any, len(list))
		for i, s := range list {
			out[i] = s
		}
		return out, true
	}
	return nil, false
}

func allStrings(list []any) bool {
	for _, item := range list {
		if _, ok := item.(string); !ok {
			return false
		}
	}
	return true
}

// isInt accepts native integers plus the shapes JSON decoding produces:
// whole-valued float64 and json.Number.
func isInt(v any) bool {
	switch n := v.(type) {
	case int, int8, int16, int32, int64:
		return true
	case float64:
		return n == math.Trunc(n)
	case json.Number:
		_, err := n.Int64()
		return err == nil
	}
	return false
}

// Registry is the allowlist of executable templates. Lookups outside the
// registry fail; there is no way to run an ad-hoc structural query. The
// registry is safe for concurrent use so a file watcher can swap template
// definitions under live traffic.
type Registry struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// NewRegistry returns a registry seeded with the built-in templates.
func NewRegistry() *Registry {
	r := &Registry{templates: make(map[string]*Template, len(builtinTemplates))}
	for _, t := range builtinTemplates {
		r.templates[t.Name] = t
	}
	return r
}

// Get looks up a template by name.
func (r *Registry) Get(name string) (*Template, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.templates[name]
	return t, ok
}

// Has reports whether a template name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns all registered template names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.templates))
	for name := range r.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// List returns all templates sorted by name.
func (r *Registry) List() []*Template {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// merge overlays the given templates onto the registry, replacing any
// existing definition with the same name.
func (r *Registry) merge(overlay []*Template) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range overlay {
		r.templates[t.Name] = t
	}
}
