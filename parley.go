package parley

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/aretw0/loam"
	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/adapters/clock"
	loamAdapter "github.com/aretw0/parley/pkg/adapters/loam"
	"github.com/aretw0/parley/pkg/decorator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

type (
	// Manager is the session state machine.
	Manager = runtime.Manager
	// StartRequest describes a dialogue to start.
	StartRequest = runtime.StartRequest
	// Suspension describes what a session waits for.
	Suspension = runtime.Suspension
)

// Engine is the high-level entry point for the Parley library. It resolves
// graphs and rows and creates managers wired to them.
type Engine struct {
	loader   ports.GraphLoader
	rows     ports.RowResolver
	registry *decorator.Registry
	hooks    domain.LifecycleHooks
	settings domain.Settings
	logger   *slog.Logger
	Name     string
}

// Option defines a functional option for configuring the Engine.
type Option func(*Engine)

// WithLifecycleHooks registers hooks on every manager the engine creates.
func WithLifecycleHooks(hooks domain.LifecycleHooks) Option {
	return func(e *Engine) {
		e.hooks = hooks
	}
}

// WithLoader injects a custom GraphLoader, bypassing the default Loam initialization.
func WithLoader(l ports.GraphLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// WithRows injects the row resolver. It defaults to the loader when the
// loader resolves rows too.
func WithRows(r ports.RowResolver) Option {
	return func(e *Engine) {
		e.rows = r
	}
}

// WithRegistry replaces the built-in decorator registry.
func WithRegistry(r *decorator.Registry) Option {
	return func(e *Engine) {
		e.registry = r
	}
}

// WithSettings sets the dialogue tunables of every manager.
func WithSettings(s domain.Settings) Option {
	return func(e *Engine) {
		e.settings = s
	}
}

// WithLogger sets a custom structured logger for the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// New initializes a new Parley Engine.
// By default, it uses a Loam repository at the given path.
// If WithLoader option is provided, repoPath can be empty and Loam is skipped.
func New(repoPath string, opts ...Option) (*Engine, error) {
	eng := &Engine{
		registry: decorator.DefaultRegistry(),
		settings: domain.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(eng)
	}
	if eng.logger == nil {
		eng.logger = logging.NewNop()
	}

	if eng.loader == nil {
		if repoPath == "" {
			return nil, fmt.Errorf("repoPath is required when no custom loader is provided")
		}
		absPath, err := filepath.Abs(repoPath)
		if err != nil {
			return nil, fmt.Errorf("invalid path: %w", err)
		}
		eng.Name = filepath.Base(absPath)

		// Strict mode keeps numbers consistent across JSON and YAML documents.
		// The engine never writes to the repository.
		repo, err := loam.Init(absPath,
			loam.WithStrict(true),
			loam.WithReadOnly(true),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize loam: %w", err)
		}
		typedRepo := loam.NewTypedRepository[loamAdapter.DocumentMetadata](repo)
		eng.loader = loamAdapter.New(typedRepo, loamAdapter.WithLogger(eng.logger))
	} else if repoPath != "" {
		eng.Name = filepath.Base(repoPath)
	}

	if eng.rows == nil {
		rows, ok := eng.loader.(ports.RowResolver)
		if !ok {
			return nil, fmt.Errorf("loader %T resolves no rows; use WithRows", eng.loader)
		}
		eng.rows = rows
	}
	if eng.Name != "" {
		eng.logger = eng.logger.With("repo", eng.Name)
	}
	return eng, nil
}

// Graph returns the graph stored under name.
func (e *Engine) Graph(ctx context.Context, name string) (*domain.Graph, error) {
	return e.loader.Graph(ctx, name)
}

// Validate lints the graph stored under name. It returns a
// *domain.AggregateError listing every violation, or nil.
func (e *Engine) Validate(ctx context.Context, name string) error {
	g, err := e.loader.Graph(ctx, name)
	if err != nil {
		return err
	}
	v := validator.New(validator.WithRegistry(e.registry), validator.WithRows(e.rows))
	return v.Validate(ctx, g)
}

// NewManager creates a manager resolving graphs and rows through the engine.
// A nil scheduler runs timers in real time.
func (e *Engine) NewManager(sched ports.Scheduler, opts ...runtime.Option) *Manager {
	if sched == nil {
		sched = clock.New()
	}
	base := []runtime.Option{
		runtime.WithLogger(e.logger),
		runtime.WithLoader(e.loader),
		runtime.WithRegistry(e.registry),
		runtime.WithSettings(e.settings),
		runtime.WithHooks(e.hooks),
	}
	return runtime.New(e.rows, sched, append(base, opts...)...)
}

// Loader returns the underlying GraphLoader used by the engine.
func (e *Engine) Loader() ports.GraphLoader {
	return e.loader
}

// Rows returns the row resolver used by the engine.
func (e *Engine) Rows() ports.RowResolver {
	return e.rows
}

// Registry returns the decorator registry used by the engine.
func (e *Engine) Registry() *decorator.Registry {
	return e.registry
}

// Watch returns a channel that signals when the underlying graphs change.
// Returns error if the loader does not support watching.
func (e *Engine) Watch(ctx context.Context) (<-chan string, error) {
	if w, ok := e.loader.(ports.Watchable); ok {
		return w.Watch(ctx)
	}
	return nil, fmt.Errorf("current loader does not support watching")
}
