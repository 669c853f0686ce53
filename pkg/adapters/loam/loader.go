package loam

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/aretw0/loam"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
)

// TablePrefix is the directory row table documents live in.
const TablePrefix = "rows/"

// Loader adapts the Loam library to the GraphLoader, RowResolver and
// Watchable ports. Parsed row tables are cached until the repository changes.
type Loader struct {
	Repo   *loam.TypedRepository[DocumentMetadata]
	logger *slog.Logger

	mu     sync.RWMutex
	tables map[string]map[string]*domain.Row
}

// Option configures the Loader.
type Option func(*Loader)

// WithLogger configures a logger for the Loader.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New creates a new Loam adapter.
func New(repo *loam.TypedRepository[DocumentMetadata], opts ...Option) *Loader {
	l := &Loader{
		Repo:   repo,
		logger: logging.NewNop(),
		tables: make(map[string]map[string]*domain.Row),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Graph implements ports.GraphLoader. The document is looked up by ID first
// and by its declared name otherwise.
func (l *Loader) Graph(ctx context.Context, name string) (*domain.Graph, error) {
	if doc, err := l.Repo.Get(ctx, name); err == nil && doc.Data.IsGraph() {
		return buildGraph(graphName(doc.ID, doc.Data), doc.Data)
	}

	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}
	for _, doc := range docs {
		if doc.Data.IsGraph() && graphName(doc.ID, doc.Data) == name {
			return buildGraph(name, doc.Data)
		}
	}
	return nil, fmt.Errorf("graph %q: %w", name, domain.ErrGraphNotFound)
}

// ListGraphs implements ports.GraphLoader.
func (l *Loader) ListGraphs(ctx context.Context) ([]string, error) {
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("loam list failed: %w", err)
	}

	seen := make(map[string]string)
	names := make([]string, 0, len(docs))
	for _, doc := range docs {
		if !doc.Data.IsGraph() {
			continue
		}
		name := graphName(doc.ID, doc.Data)
		if existing, ok := seen[name]; ok {
			return nil, fmt.Errorf("collision detected: graph '%s' is defined in both '%s' and '%s'", name, existing, doc.ID)
		}
		seen[name] = doc.ID
		names = append(names, name)
	}
	return names, nil
}

// Row implements ports.RowResolver.
func (l *Loader) Row(ctx context.Context, table, key string) (*domain.Row, error) {
	rows, err := l.table(ctx, table)
	if err != nil {
		return nil, err
	}
	row, ok := rows[key]
	if !ok {
		return nil, fmt.Errorf("row %s/%s: %w", table, key, domain.ErrRowNotFound)
	}
	return row, nil
}

func (l *Loader) table(ctx context.Context, table string) (map[string]*domain.Row, error) {
	l.mu.RLock()
	rows, ok := l.tables[table]
	l.mu.RUnlock()
	if ok {
		return rows, nil
	}

	meta, found, err := l.findTable(ctx, table)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("table %s: %w", table, domain.ErrRowNotFound)
	}
	rows, err = buildRows(table, meta)
	if err != nil {
		return nil, err
	}

	l.mu.Lock()
	l.tables[table] = rows
	l.mu.Unlock()
	return rows, nil
}

func (l *Loader) findTable(ctx context.Context, table string) (DocumentMetadata, bool, error) {
	if doc, err := l.Repo.Get(ctx, TablePrefix+table); err == nil && doc.Data.IsTable() {
		return doc.Data, true, nil
	}
	docs, err := l.Repo.List(ctx)
	if err != nil {
		return DocumentMetadata{}, false, fmt.Errorf("loam list failed: %w", err)
	}
	for _, doc := range docs {
		if doc.Data.IsTable() && tableName(doc.ID, doc.Data) == table {
			return doc.Data, true, nil
		}
	}
	return DocumentMetadata{}, false, nil
}

// Invalidate drops every cached row table.
func (l *Loader) Invalidate() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tables = make(map[string]map[string]*domain.Row)
}

// Watch implements ports.Watchable. Every change invalidates the row cache
// before it is forwarded.
func (l *Loader) Watch(ctx context.Context) (<-chan string, error) {
	events, err := l.Repo.Watch(ctx, "**/*.{md,json,yaml,yml}")
	if err != nil {
		return nil, fmt.Errorf("failed to start loam watcher: %w", err)
	}

	ch := make(chan string, 1)

	go func() {
		defer close(ch)
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				l.Invalidate()
				l.logger.Debug("document changed", "id", evt.ID)
				select {
				case ch <- trimExtension(evt.ID):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}

func graphName(docID string, meta DocumentMetadata) string {
	switch {
	case meta.Name != "":
		return meta.Name
	case meta.ID != "":
		return trimExtension(meta.ID)
	}
	return trimExtension(docID)
}

func tableName(docID string, meta DocumentMetadata) string {
	if meta.Table != "" {
		return meta.Table
	}
	return path.Base(trimExtension(docID))
}

func trimExtension(id string) string {
	ext := filepath.Ext(id)
	if ext != "" {
		return filepath.ToSlash(strings.TrimSuffix(id, ext))
	}
	return filepath.ToSlash(id)
}
