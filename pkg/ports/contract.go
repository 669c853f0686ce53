package ports

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSnapshotStoreContract runs a suite of tests to verify that a SnapshotStore
// implementation adheres to the defined interface contract.
func RunSnapshotStoreContract(t *testing.T, store SnapshotStore) {
	ctx := context.Background()
	sessionID := "contract-test-session-" + time.Now().Format("20060102150405.000000")

	newSnapshot := func(id string, seq uint64) domain.Snapshot {
		return domain.Snapshot{
			SessionID:          id,
			Sequence:           seq,
			State:              domain.StateActive,
			ActiveNode:         domain.GUIDFromName("greeting"),
			AllowedChildren:    []domain.GUID{domain.GUIDFromName("done")},
			ActiveParticipant:  "npc",
			MainParticipant:    "npc",
			Player:             "player",
			Participants:       []string{"npc", "player"},
			ActiveRowTable:     "intro",
			ActiveRowKey:       "greeting",
			ActiveRowDataIndex: 1,
			LastUICommand:      domain.CommandShowRow,
		}
	}

	t.Run("Save and Load", func(t *testing.T) {
		snap := newSnapshot(sessionID, 3)

		err := store.Save(ctx, snap)
		require.NoError(t, err, "Save should not return error")

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, snap, loaded)
	})

	t.Run("Save Overwrites", func(t *testing.T) {
		next := newSnapshot(sessionID, 4)
		next.ActiveRowDataIndex = 0
		require.NoError(t, store.Save(ctx, next))

		loaded, err := store.Load(ctx, sessionID)
		require.NoError(t, err)
		assert.Equal(t, uint64(4), loaded.Sequence)
		assert.Equal(t, 0, loaded.ActiveRowDataIndex)
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, store.Save(ctx, newSnapshot(sessionID, 5)))

		err := store.Delete(ctx, sessionID)
		require.NoError(t, err, "Delete should not return error")

		_, err = store.Load(ctx, sessionID)
		assert.ErrorIs(t, err, domain.ErrSessionNotFound, "Load after Delete should return ErrSessionNotFound")
	})

	t.Run("List", func(t *testing.T) {
		id1 := sessionID + "-1"
		id2 := sessionID + "-2"
		require.NoError(t, store.Save(ctx, newSnapshot(id1, 1)))
		require.NoError(t, store.Save(ctx, newSnapshot(id2, 1)))

		defer func() {
			_ = store.Delete(ctx, id1)
			_ = store.Delete(ctx, id2)
		}()

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		assert.Contains(t, sessions, id1)
		assert.Contains(t, sessions, id2)
	})
}
