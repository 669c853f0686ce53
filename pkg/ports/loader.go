package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// GraphLoader defines how the engine retrieves authored dialogue graphs.
// This allows the storage layer (Loam, Memory) to be decoupled.
type GraphLoader interface {
	// Graph returns the graph stored under name, or domain.ErrGraphNotFound.
	Graph(ctx context.Context, name string) (*domain.Graph, error)

	// ListGraphs returns the names of all graphs available.
	ListGraphs(ctx context.Context) ([]string, error)
}

// Watchable defines an interface for loaders that can notify about backend changes.
// This is typically used for hot-reload or dev-mode functionality.
type Watchable interface {
	// Watch returns a channel that is signaled when the underlying graphs change.
	// It carries the name of the changed document when known.
	Watch(ctx context.Context) (<-chan string, error)
}
