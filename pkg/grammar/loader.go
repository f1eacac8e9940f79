// Package grammar provides the compiled-in tree-sitter grammars used to
// extract Java declarations and measure method complexity.
//
// Only grammars linked via CGO at build time are supported. Languages without
// a grammar fall back to token-based analysis.
package grammar

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"unsafe"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_java "github.com/tree-sitter/tree-sitter-java/bindings/go"
)

// Loader provides access to tree-sitter language grammars.
type Loader interface {
	// Load returns the Language for the given name.
	Load(ctx context.Context, name string) (*tree_sitter.Language, error)

	// Available returns all grammar names that can be loaded, sorted.
	Available() []string
}

// Provider returns a pointer to a TSLanguage, the signature exposed by
// tree-sitter grammar Go bindings.
type Provider func() unsafe.Pointer

// ErrGrammarNotFound is returned when a grammar is not available.
type ErrGrammarNotFound struct {
	Name string
}

func (e *ErrGrammarNotFound) Error() string {
	return fmt.Sprintf("grammar %q not found", e.Name)
}

// Registry holds compiled-in grammars keyed by source language and caches
// each Language after its first load.
type Registry struct {
	providers map[string]Provider

	mu    sync.Mutex
	cache map[string]*tree_sitter.Language
}

// NewRegistry returns a registry of the grammars linked into the binary.
func NewRegistry() *Registry {
	return &Registry{
		providers: map[string]Provider{
			"java": tree_sitter_java.Language,
		},
		cache: make(map[string]*tree_sitter.Language),
	}
}

// Load returns the Language for name.
func (r *Registry) Load(ctx context.Context, name string) (*tree_sitter.Language, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if lang, ok := r.cache[name]; ok {
		return lang, nil
	}
	provide, ok := r.providers[name]
	if !ok {
		return nil, &ErrGrammarNotFound{Name: name}
	}
	lang := tree_sitter.NewLanguage(provide())
	if lang == nil {
		return nil, &ErrGrammarNotFound{Name: name}
	}
	r.cache[name] = lang
	return lang, nil
}

// Has reports whether a grammar for name is compiled in.
func (r *Registry) Has(name string) bool {
	_, ok := r.providers[name]
	return ok
}

// Available returns the compiled-in grammar names, sorted.
func (r *Registry) Available() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultLoader returns the process-wide registry. Sharing it avoids
// re-creating languages per scan.
var DefaultLoader = sync.OnceValue(NewRegistry)

// Parse parses content with the named grammar. The caller must Close the
// returned tree.
func Parse(ctx context.Context, l Loader, name string, content []byte) (*tree_sitter.Tree, error) {
	lang, err := l.Load(ctx, name)
	if err != nil {
		return nil, err
	}
	parser := tree_sitter.NewParser()
	defer parser.Close()
	if err := parser.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("set %s grammar: %w", name, err)
	}
	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("parse %s: no tree", name)
	}
	return tree, nil
}
