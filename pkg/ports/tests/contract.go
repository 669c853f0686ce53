package tests

import (
	"context"
	"testing"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// GraphLoaderContractTest is a reusable test suite that verifies if an adapter
// complies with ports.GraphLoader. expected maps graph names to the number of
// nodes each graph holds, Start included.
func GraphLoaderContractTest(t *testing.T, loader ports.GraphLoader, expected map[string]int) {
	t.Helper()
	ctx := context.Background()

	t.Run("Graph_Success", func(t *testing.T) {
		for name, count := range expected {
			g, err := loader.Graph(ctx, name)
			require.NoError(t, err, "graph %s", name)
			assert.Len(t, g.AllNodes(), count, "graph %s", name)
			require.NotNil(t, g.Start(), "graph %s has no start node", name)
			assert.Equal(t, domain.KindStart, g.Start().Kind)
		}
	})

	t.Run("Graph_NotFound", func(t *testing.T) {
		_, err := loader.Graph(ctx, "non-existent-graph")
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})

	t.Run("ListGraphs", func(t *testing.T) {
		names, err := loader.ListGraphs(ctx)
		require.NoError(t, err)
		assert.Len(t, names, len(expected))
		for name := range expected {
			assert.Contains(t, names, name)
		}
	})
}
