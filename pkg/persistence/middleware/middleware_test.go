package middleware_test

import (
	"context"
	"crypto/rand"
	"io"
	"testing"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateKey(t *testing.T) []byte {
	t.Helper()
	k := make([]byte, 32)
	_, err := io.ReadFull(rand.Reader, k)
	require.NoError(t, err)
	return k
}

func sample() domain.Snapshot {
	return domain.Snapshot{
		SessionID:         "s1",
		Sequence:          4,
		State:             domain.StateActive,
		ActiveNode:        domain.NewGUID(),
		ActiveParticipant: "user:42",
		MainParticipant:   "guard",
		Player:            "user:42",
		Participants:      []string{"user:42", "guard"},
		ActiveRowTable:    "gate",
		ActiveRowKey:      "ask",
	}
}

func sealed(t *testing.T, cfg middleware.EncryptionConfig, next ports.SnapshotStore) ports.SnapshotStore {
	t.Helper()
	mw, err := middleware.NewEncryptionMiddleware(cfg)
	require.NoError(t, err)
	return mw(next)
}

func TestEncryptionMiddleware_Roundtrip(t *testing.T) {
	underlying := memory.NewStore()
	store := sealed(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlying)
	ctx := context.Background()
	original := sample()

	require.NoError(t, store.Save(ctx, original))

	stored, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, stored.Sealed)
	assert.Equal(t, uint64(4), stored.Sequence)
	assert.Equal(t, domain.StateActive, stored.State)
	assert.True(t, stored.Closed(), "the envelope hides the active node")
	assert.Empty(t, stored.Participants)
	assert.NotContains(t, string(stored.Sealed), "user:42")

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, original, loaded)

	ids, err := store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"s1"}, ids)
	require.NoError(t, store.Delete(ctx, "s1"))
	_, err = store.Load(ctx, "s1")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestEncryptionMiddleware_KeyRotation(t *testing.T) {
	underlying := memory.NewStore()
	oldKey, newKey := generateKey(t), generateKey(t)
	ctx := context.Background()

	require.NoError(t, sealed(t, middleware.EncryptionConfig{ActiveKey: oldKey}, underlying).Save(ctx, sample()))

	rotated := sealed(t, middleware.EncryptionConfig{ActiveKey: newKey, FallbackKeys: [][]byte{oldKey}}, underlying)
	loaded, err := rotated.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "ask", loaded.ActiveRowKey)

	wrong := sealed(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlying)
	_, err = wrong.Load(ctx, "s1")
	assert.ErrorContains(t, err, "decryption failed")
}

func TestEncryptionMiddleware_Errors(t *testing.T) {
	_, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: []byte("short")})
	assert.Error(t, err)
	_, err = middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t), FallbackKeys: [][]byte{{1}}})
	assert.Error(t, err)

	underlying := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, underlying.Save(ctx, sample()))
	_, err = sealed(t, middleware.EncryptionConfig{ActiveKey: generateKey(t)}, underlying).Load(ctx, "s1")
	assert.ErrorIs(t, err, middleware.ErrNotSealed)
}

func TestPIIMiddleware_MasksParticipants(t *testing.T) {
	underlying := memory.NewStore()
	mw, err := middleware.NewPIIMiddleware([]string{`^user:`})
	require.NoError(t, err)
	store := mw(underlying)
	ctx := context.Background()

	original := sample()
	require.NoError(t, store.Save(ctx, original))
	assert.Equal(t, []string{"user:42", "guard"}, original.Participants, "the caller's snapshot is untouched")

	stored, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{middleware.Mask, "guard"}, stored.Participants)
	assert.Equal(t, middleware.Mask, stored.Player)
	assert.Equal(t, middleware.Mask, stored.ActiveParticipant)
	assert.Equal(t, "guard", stored.MainParticipant)

	_, err = middleware.NewPIIMiddleware([]string{"("})
	assert.Error(t, err)
}

func TestChain_MasksBeforeSealing(t *testing.T) {
	underlying := memory.NewStore()
	pii, err := middleware.NewPIIMiddleware([]string{`^user:`})
	require.NoError(t, err)
	enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: generateKey(t)})
	require.NoError(t, err)

	store := middleware.Chain(underlying, pii, enc)
	ctx := context.Background()
	require.NoError(t, store.Save(ctx, sample()))

	raw, err := underlying.Load(ctx, "s1")
	require.NoError(t, err)
	assert.NotEmpty(t, raw.Sealed)

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, middleware.Mask, loaded.Player)
}
