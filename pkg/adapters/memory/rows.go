package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Rows implements ports.RowResolver over in-memory tables.
type Rows struct {
	mu     sync.RWMutex
	tables map[string]map[string]*domain.Row
}

// NewRows creates an empty set of row tables.
func NewRows() *Rows {
	return &Rows{tables: make(map[string]map[string]*domain.Row)}
}

// Put stores row under (table, key).
func (r *Rows) Put(table, key string, row *domain.Row) *Rows {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tables[table]
	if !ok {
		t = make(map[string]*domain.Row)
		r.tables[table] = t
	}
	t[key] = row
	return r
}

// Row resolves (table, key).
func (r *Rows) Row(_ context.Context, table, key string) (*domain.Row, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	row, ok := r.tables[table][key]
	if !ok {
		return nil, fmt.Errorf("row %s/%s: %w", table, key, domain.ErrRowNotFound)
	}
	return row, nil
}

// Tables returns the number of tables held.
func (r *Rows) Tables() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tables)
}
