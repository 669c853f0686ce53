package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/internal/config"
	"github.com/aretw0/parley/internal/host"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/replication"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/adapters/postgres"
	"github.com/aretw0/parley/pkg/adapters/redis"
	"github.com/aretw0/parley/pkg/persistence/middleware"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/aretw0/parley/pkg/session"
	"github.com/spf13/cobra"
)

// loadConfig reads --config over the defaults and applies the flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg := config.Default()
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return nil, nil, err
		}
		cfg = loaded
	}
	if dir, _ := cmd.Flags().GetString("dir"); dir != "" {
		cfg.Graphs.Dir = dir
	}
	if lvl, _ := cmd.Flags().GetString("log-level"); lvl != "" {
		cfg.LogLevel = lvl
	}
	if err := config.Validate(cfg); err != nil {
		return nil, nil, err
	}
	level, _ := logging.ParseLevel(cfg.LogLevel)
	return cfg, logging.New(level), nil
}

func newEngine(cfg *config.Config, logger *slog.Logger, opts ...parley.Option) (*parley.Engine, error) {
	base := []parley.Option{
		parley.WithLogger(logger),
		parley.WithSettings(cfg.Settings()),
	}
	eng, err := parley.New(cfg.Graphs.Dir, append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize parley: %w", err)
	}
	return eng, nil
}

// backend holds the process-wide storage and transport of a host.
type backend struct {
	store     *session.Manager
	transport ports.Transport
	closers   []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// newBackend picks redis when configured, then postgres, then memory. local
// is the transport used when redis does not carry requests and snapshots.
func newBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger, local ports.Transport) (*backend, error) {
	b := &backend{transport: local}
	var (
		store  ports.SnapshotStore = memory.NewStore()
		locker ports.DistributedLocker
	)

	switch {
	case cfg.Redis.Addr != "":
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		b.closers = append(b.closers, func() { _ = client.Close() })
		storeOpts := []redis.Option{redis.WithPrefix(cfg.Redis.Prefix)}
		if cfg.Redis.TTL > 0 {
			storeOpts = append(storeOpts, redis.WithTTL(cfg.Redis.TTL))
		}
		store = redis.NewFromClient(client, storeOpts...)
		locker = redis.NewLocker(client, cfg.Redis.Prefix+"lock:")
		b.transport = redis.NewTransport(client,
			redis.WithTransportPrefix(cfg.Redis.Prefix),
			redis.WithTransportLogger(logger),
		)
		logger.Info("using redis backend", "addr", cfg.Redis.Addr)
	case cfg.Postgres.DSN != "":
		pg, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, pg.Close)
		store = pg
		logger.Info("using postgres snapshot store")
	}

	protected, err := protect(cfg, store)
	if err != nil {
		b.Close()
		return nil, err
	}

	opts := []session.Option{session.WithLogger(logger)}
	if locker != nil {
		opts = append(opts, session.WithLocker(locker))
	}
	b.store = session.NewManager(protected, opts...)
	return b, nil
}

// newHost serves every session of the process through one transport.
func newHost(cfg *config.Config, eng *parley.Engine, sched ports.Scheduler, b *backend, logger *slog.Logger) *host.Host {
	factory := func(sessionID string) *runtime.Manager {
		return eng.NewManager(sched, runtime.WithName(sessionID))
	}
	return host.New(factory, b.transport, eng.Loader(), eng.Rows(),
		host.WithLogger(logger),
		host.WithAuthorityOptions(
			replication.WithLogger(logger),
			replication.WithStore(b.store),
			replication.WithDebounce(cfg.Replication.ContextDebounce...),
		),
	)
}

// protect applies participant masking, then encryption, to store.
func protect(cfg *config.Config, store ports.SnapshotStore) (ports.SnapshotStore, error) {
	var mws []middleware.Middleware
	if len(cfg.Storage.MaskParticipants) > 0 {
		pii, err := middleware.NewPIIMiddleware(cfg.Storage.MaskParticipants)
		if err != nil {
			return nil, err
		}
		mws = append(mws, pii)
	}
	active, fallback, err := cfg.Storage.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		enc, err := middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: active, FallbackKeys: fallback})
		if err != nil {
			return nil, err
		}
		mws = append(mws, enc)
	}
	return middleware.Chain(store, mws...), nil
}
