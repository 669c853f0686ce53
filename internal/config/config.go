// Package config loads the process configuration from YAML.
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/domain"
	"gopkg.in/yaml.v3"
)

// Config is the full process configuration. Treat it as read-only once loaded.
type Config struct {
	LogLevel    string            `yaml:"log_level"`
	Dialogue    DialogueConfig    `yaml:"dialogue"`
	Replication ReplicationConfig `yaml:"replication"`
	Server      ServerConfig      `yaml:"server"`
	Redis       RedisConfig       `yaml:"redis"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	Storage     StorageConfig     `yaml:"storage"`
	Graphs      GraphsConfig      `yaml:"graphs"`
}

// DialogueConfig tunes the session state machine.
type DialogueConfig struct {
	DurationCoefficient float64       `yaml:"duration_coefficient"`
	DefaultManagerState string        `yaml:"default_manager_state"`
	SkipWholeRow        bool          `yaml:"skip_whole_row"`
	SkipFade            time.Duration `yaml:"skip_fade"`
}

// ReplicationConfig tunes the authority and peer roles.
type ReplicationConfig struct {
	// ContextDebounce are the waits before a peer reads a freshly mirrored context.
	ContextDebounce []time.Duration `yaml:"context_debounce"`
	PeerRetryLimit  int             `yaml:"peer_retry_limit"`
	RetryInterval   time.Duration   `yaml:"retry_interval"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	Addr        string `yaml:"addr"`
	MetricsAddr string `yaml:"metrics_addr"`
}

// RedisConfig enables the redis store, locker and transport when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	Prefix   string        `yaml:"prefix"`
	TTL      time.Duration `yaml:"ttl"`
}

// PostgresConfig enables the postgres snapshot store when DSN is set.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// StorageConfig protects snapshots at rest. Keys are base64 encoded and
// decode to 32 bytes.
type StorageConfig struct {
	EncryptionKey    string   `yaml:"encryption_key"`
	FallbackKeys     []string `yaml:"fallback_keys"`
	MaskParticipants []string `yaml:"mask_participants"`
}

// Keys decodes the active and fallback keys. active is nil when encryption is off.
func (s StorageConfig) Keys() (active []byte, fallback [][]byte, err error) {
	if s.EncryptionKey == "" {
		return nil, nil, nil
	}
	if active, err = decodeKey(s.EncryptionKey); err != nil {
		return nil, nil, fmt.Errorf("storage.encryption_key: %w", err)
	}
	for i, k := range s.FallbackKeys {
		key, err := decodeKey(k)
		if err != nil {
			return nil, nil, fmt.Errorf("storage.fallback_keys[%d]: %w", i, err)
		}
		fallback = append(fallback, key)
	}
	return active, fallback, nil
}

func decodeKey(s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("not base64: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("must decode to 32 bytes, got %d", len(key))
	}
	return key, nil
}

// GraphsConfig points at the Loam repository holding graphs and rows.
type GraphsConfig struct {
	Dir string `yaml:"dir"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Dialogue: DialogueConfig{
			DurationCoefficient: domain.DefaultDurationCoefficient,
			DefaultManagerState: string(domain.StateEnabled),
		},
		Replication: ReplicationConfig{
			ContextDebounce: []time.Duration{100 * time.Millisecond, 200 * time.Millisecond},
			PeerRetryLimit:  10,
			RetryInterval:   16 * time.Millisecond,
		},
		Server: ServerConfig{
			Addr:        ":8080",
			MetricsAddr: ":2112",
		},
		Redis: RedisConfig{
			Prefix: "parley:",
		},
		Graphs: GraphsConfig{Dir: "."},
	}
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r over the defaults and validates
// the result. Unknown keys are rejected.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if _, err := logging.ParseLevel(cfg.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}

	if cfg.Dialogue.DurationCoefficient <= 0 {
		errs = append(errs, fmt.Errorf("dialogue.duration_coefficient must be positive, got %v", cfg.Dialogue.DurationCoefficient))
	}
	switch domain.ManagerState(cfg.Dialogue.DefaultManagerState) {
	case domain.StateEnabled, domain.StateDisabled:
	default:
		errs = append(errs, fmt.Errorf("dialogue.default_manager_state %q is invalid; valid values: enabled, disabled", cfg.Dialogue.DefaultManagerState))
	}
	if cfg.Dialogue.SkipFade < 0 {
		errs = append(errs, errors.New("dialogue.skip_fade must not be negative"))
	}

	for i, d := range cfg.Replication.ContextDebounce {
		if d < 0 {
			errs = append(errs, fmt.Errorf("replication.context_debounce[%d] must not be negative", i))
		}
	}
	if cfg.Replication.PeerRetryLimit < 1 {
		errs = append(errs, fmt.Errorf("replication.peer_retry_limit must be at least 1, got %d", cfg.Replication.PeerRetryLimit))
	}
	if cfg.Replication.RetryInterval <= 0 {
		errs = append(errs, errors.New("replication.retry_interval must be positive"))
	}

	if cfg.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if cfg.Redis.DB < 0 {
		errs = append(errs, fmt.Errorf("redis.db %d is invalid", cfg.Redis.DB))
	}
	if cfg.Redis.TTL < 0 {
		errs = append(errs, errors.New("redis.ttl must not be negative"))
	}

	if _, _, err := cfg.Storage.Keys(); err != nil {
		errs = append(errs, err)
	}
	if len(cfg.Storage.FallbackKeys) > 0 && cfg.Storage.EncryptionKey == "" {
		errs = append(errs, errors.New("storage.fallback_keys require storage.encryption_key"))
	}
	for i, p := range cfg.Storage.MaskParticipants {
		if _, err := regexp.Compile(p); err != nil {
			errs = append(errs, fmt.Errorf("storage.mask_participants[%d]: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Settings returns the dialogue tunables handed to every manager.
func (c *Config) Settings() domain.Settings {
	return domain.Settings{
		DurationCoefficient: c.Dialogue.DurationCoefficient,
		DefaultState:        domain.ManagerState(c.Dialogue.DefaultManagerState),
		SkipWholeRow:        c.Dialogue.SkipWholeRow,
		SkipFade:            c.Dialogue.SkipFade,
	}
}
