package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewBackend_Memory(t *testing.T) {
	local := memory.NewTransport(4)
	b, err := newBackend(context.Background(), config.Default(), logging.NewNop(), local)
	require.NoError(t, err)
	defer b.Close()

	assert.Same(t, local, b.transport)
	ctx := context.Background()
	require.NoError(t, b.store.Save(ctx, domain.Snapshot{SessionID: "s1", Sequence: 2, State: domain.StateActive}))
	require.NoError(t, b.store.Save(ctx, domain.Snapshot{SessionID: "s1", Sequence: 1, State: domain.StateEnabled}))
	snap, err := b.store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), snap.Sequence, "stale snapshots are dropped")
}

func TestNewBackend_RedisSealed(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	cfg.Storage.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))
	cfg.Storage.MaskParticipants = []string{`^user:`}
	require.NoError(t, config.Validate(cfg))

	b, err := newBackend(context.Background(), cfg, logging.NewNop(), memory.NewTransport(4))
	require.NoError(t, err)
	defer b.Close()
	assert.IsType(t, &redis.Transport{}, b.transport)

	ctx := context.Background()
	require.NoError(t, b.store.Save(ctx, domain.Snapshot{
		SessionID:  "s1",
		Sequence:   1,
		State:      domain.StateActive,
		ActiveNode: domain.NewGUID(),
		Player:     "user:7",
	}))

	raw, err := mr.Get("parley:session:s1")
	require.NoError(t, err)
	assert.Contains(t, raw, `"sealed"`)
	assert.NotContains(t, raw, "user:7")

	snap, err := b.store.Load(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "***", snap.Player)
	assert.False(t, snap.Closed())
}

func TestNewBackend_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()
	mr.Close()

	_, err := newBackend(context.Background(), cfg, logging.NewNop(), memory.NewTransport(4))
	assert.ErrorContains(t, err, "redis")
}
