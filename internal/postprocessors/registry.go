package postprocessors

import (
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/contextkb/internal/core/domain"
	"github.com/custodia-labs/contextkb/internal/core/ports/driven"
	"github.com/custodia-labs/contextkb/internal/postprocessors/sanitizer"
)

// BuilderFunc creates a PostProcessor from its stage config. Values come
// from TOML or JSON, so integers may arrive as int64 or float64.
type BuilderFunc func(cfg map[string]any) (driven.PostProcessor, error)

// Stage is one configured step of the chunking pipeline.
type Stage struct {
	Name   string
	Config map[string]any
}

// Registry resolves stage names to processors.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]BuilderFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{builders: make(map[string]BuilderFunc)}
}

// NewDefaultRegistry creates a registry holding the built-in processors.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	RegisterDefaults(r)
	return r
}

// Register adds or replaces the builder for name.
func (r *Registry) Register(name string, builder BuilderFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.builders[name] = builder
}

// Build creates the processor registered under name. Unknown names and
// rejected configs are validation errors.
func (r *Registry) Build(name string, cfg map[string]any) (driven.PostProcessor, error) {
	r.mu.RLock()
	builder, ok := r.builders[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: unknown processor %q", domain.ErrInvalidInput, name)
	}

	proc, err := builder(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrInvalidInput, name, err)
	}
	return proc, nil
}

// BuildPipeline builds stages in order. A configured sanitizer stage is
// skipped because every pipeline ends with one.
func (r *Registry) BuildPipeline(stages ...Stage) (*Pipeline, error) {
	p := NewPipeline()
	for _, s := range stages {
		if s.Name == sanitizer.Name {
			continue
		}
		proc, err := r.Build(s.Name, s.Config)
		if err != nil {
			return nil, err
		}
		p.Add(proc)
	}
	return p, nil
}

// Names returns the registered processor names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.builders))
	for name := range r.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
