package config_test

import (
	"bytes"
	"encoding/base64"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadFromReader_Defaults(t *testing.T) {
	t.Parallel()
	cfg, err := config.LoadFromReader(strings.NewReader(""))
	require.NoError(t, err)

	assert.Equal(t, config.Default(), cfg)
	assert.Equal(t, domain.DefaultSettings(), cfg.Settings())
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, cfg.Replication.ContextDebounce)
}

func TestLoadFromReader_Overrides(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: debug
dialogue:
  duration_coefficient: 12.5
  default_manager_state: disabled
  skip_whole_row: true
  skip_fade: 250ms
replication:
  peer_retry_limit: 3
redis:
  addr: localhost:6379
`
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	s := cfg.Settings()
	assert.Equal(t, 12.5, s.DurationCoefficient)
	assert.Equal(t, domain.StateDisabled, s.DefaultState)
	assert.True(t, s.SkipWholeRow)
	assert.Equal(t, 250*time.Millisecond, s.SkipFade)
	assert.Equal(t, 3, cfg.Replication.PeerRetryLimit)
	assert.Equal(t, 16*time.Millisecond, cfg.Replication.RetryInterval, "unset keys keep defaults")
	assert.Equal(t, "parley:", cfg.Redis.Prefix)
}

func TestLoadFromReader_RejectsUnknownKeys(t *testing.T) {
	t.Parallel()
	_, err := config.LoadFromReader(strings.NewReader("dialogue:\n  coefficient: 3\n"))
	assert.Error(t, err)
}

func TestValidate_JoinsEveryFailure(t *testing.T) {
	t.Parallel()
	yaml := `
log_level: loud
dialogue:
  duration_coefficient: 0
  default_manager_state: active
replication:
  peer_retry_limit: 0
`
	_, err := config.LoadFromReader(strings.NewReader(yaml))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "log_level")
	assert.Contains(t, msg, "duration_coefficient")
	assert.Contains(t, msg, "default_manager_state")
	assert.Contains(t, msg, "peer_retry_limit")
}

func TestLoad_File(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "parley.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)

	_, err = config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestStorage_Keys(t *testing.T) {
	t.Parallel()
	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	yaml := "storage:\n  encryption_key: " + key + "\n  fallback_keys: [" + key + "]\n  mask_participants: ['^user:']\n"
	cfg, err := config.LoadFromReader(strings.NewReader(yaml))
	require.NoError(t, err)

	active, fallback, err := cfg.Storage.Keys()
	require.NoError(t, err)
	assert.Len(t, active, 32)
	assert.Len(t, fallback, 1)

	active, _, err = config.Default().Storage.Keys()
	require.NoError(t, err)
	assert.Nil(t, active, "encryption is off by default")

	_, err = config.LoadFromReader(strings.NewReader("storage:\n  encryption_key: c2hvcnQ=\n  mask_participants: ['(']\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 bytes")
	assert.Contains(t, err.Error(), "mask_participants[0]")

	_, err = config.LoadFromReader(strings.NewReader("storage:\n  fallback_keys: [" + key + "]\n"))
	assert.ErrorContains(t, err, "require storage.encryption_key")
}
