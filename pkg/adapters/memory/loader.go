package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Loader implements ports.GraphLoader using an in-memory map.
type Loader struct {
	mu     sync.RWMutex
	graphs map[string]*domain.Graph
}

// NewLoader creates a new Loader holding the provided graphs, keyed by name.
func NewLoader(graphs ...*domain.Graph) *Loader {
	l := &Loader{graphs: make(map[string]*domain.Graph, len(graphs))}
	for _, g := range graphs {
		l.Add(g)
	}
	return l
}

// Add stores g under its name, replacing any previous graph.
func (l *Loader) Add(g *domain.Graph) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g.Reindex()
	l.graphs[g.Name] = g
}

// Graph returns the graph stored under name.
func (l *Loader) Graph(_ context.Context, name string) (*domain.Graph, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	g, ok := l.graphs[name]
	if !ok {
		return nil, fmt.Errorf("graph %q: %w", name, domain.ErrGraphNotFound)
	}
	return g, nil
}

// ListGraphs returns all available graph names.
func (l *Loader) ListGraphs(context.Context) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	keys := make([]string, 0, len(l.graphs))
	for k := range l.graphs {
		keys = append(keys, k)
	}
	sort.Strings(keys) // Deterministic order
	return keys, nil
}
