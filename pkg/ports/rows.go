package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// RowResolver resolves the (table, key) indirection of content nodes.
// It returns domain.ErrRowNotFound when the pair does not exist.
type RowResolver interface {
	Row(ctx context.Context, table, key string) (*domain.Row, error)
}
