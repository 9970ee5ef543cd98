// Package frontend turns source files into translation units for the
// enrichment passes. Language frontends live in subpackages and register
// themselves with DefaultRegistry from their init functions.
package frontend

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"cpg-enrich/graph"
)

// Parser builds the translation unit of one source file.
type Parser interface {
	ParseFile(ctx context.Context, path string) (*graph.TranslationUnitDeclaration, error)
}

// DirLoader is implemented by parsers that prefer to load all their files of
// a directory tree at once, e.g. to type-check whole packages. ParseAll hands
// them the files it selected; they return one unit per file.
type DirLoader interface {
	LoadDir(ctx context.Context, root string, files []string) ([]*graph.TranslationUnitDeclaration, error)
}

// Closer is implemented by parsers holding native resources. ParseAll closes
// every parser it created once it is done with it.
type Closer interface {
	Close()
}

// Factory creates a parser. Types are created through tm; root is the
// directory being analysed, unit paths are relative to it.
type Factory func(tm *graph.TypeManager, root string) Parser

// Registry maps language names and file extensions to parser factories.
// It is safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	extMap    map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		extMap:    make(map[string]string),
	}
}

// Register adds a factory for the given extensions. Extensions include the
// leading dot; the first registration of an extension wins.
func (r *Registry) Register(name string, extensions []string, factory Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[name] = factory
	for _, ext := range extensions {
		if _, exists := r.extMap[ext]; !exists {
			r.extMap[ext] = name
		}
	}
}

// LanguageFor returns the language registered for a file extension.
func (r *Registry) LanguageFor(ext string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name, ok := r.extMap[ext]
	return name, ok
}

// Create instantiates the parser registered as name.
func (r *Registry) Create(name string, tm *graph.TypeManager, root string) (Parser, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("parser not registered: %s", name)
	}
	return factory(tm, root), nil
}

// Languages returns the registered language names, sorted.
func (r *Registry) Languages() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Extensions returns the extensions mapped to name, sorted.
func (r *Registry) Extensions(name string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var exts []string
	for ext, n := range r.extMap {
		if n == name {
			exts = append(exts, ext)
		}
	}
	slices.Sort(exts)
	return exts
}

// DefaultRegistry is the registry the language subpackages register with.
var DefaultRegistry = NewRegistry()
