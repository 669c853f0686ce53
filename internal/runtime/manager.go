package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/decorator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Manager is the authoritative session owner for one participant-bearing entity.
// It is safe for concurrent use; operations are serialised internally.
type Manager struct {
	mu sync.Mutex

	name     string
	rows     ports.RowResolver
	sched    ports.Scheduler
	loader   ports.GraphLoader
	registry *decorator.Registry
	hooks    domain.LifecycleHooks
	logger   *slog.Logger
	settings domain.Settings
	rng      *rand.Rand

	state       domain.ManagerState
	sessionType domain.SessionType
	sessionID   string
	version     uint64

	graph        *graphInstance
	dctx         *domain.Context
	participants []ports.Participant
	initiator    ports.Participant
	baseCtx      context.Context

	suspension Suspension
	timer      ports.TimerHandle
	token      uint64
	hops       int
	rowShown   bool

	widgets  []ports.UserInterface
	outbox   []func(context.Context)
	pending  []func()
	draining bool
}

// Option configures the Manager.
type Option func(*Manager)

// WithLogger configures a logger for the Manager.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithHooks registers lifecycle callbacks.
func WithHooks(hooks domain.LifecycleHooks) Option {
	return func(m *Manager) {
		m.hooks = hooks
	}
}

// WithSettings replaces the default dialogue settings.
func WithSettings(s domain.Settings) Option {
	return func(m *Manager) {
		m.settings = s
	}
}

// WithLoader lets Start resolve a graph by name.
func WithLoader(loader ports.GraphLoader) Option {
	return func(m *Manager) {
		m.loader = loader
	}
}

// WithRegistry sets the registry decorator specs are built from.
func WithRegistry(r *decorator.Registry) Option {
	return func(m *Manager) {
		m.registry = r
	}
}

// WithRand sets the random source handed to decorators.
func WithRand(r *rand.Rand) Option {
	return func(m *Manager) {
		m.rng = r
	}
}

// WithName names the manager towards its participants.
func WithName(name string) Option {
	return func(m *Manager) {
		m.name = name
	}
}

// New creates an idle Manager in its default state.
func New(rows ports.RowResolver, sched ports.Scheduler, opts ...Option) *Manager {
	m := &Manager{
		name:     "dialogue-manager",
		rows:     rows,
		sched:    sched,
		registry: decorator.DefaultRegistry(),
		logger:   logging.NewNop(),
		settings: domain.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.rng == nil {
		m.rng = rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0))
	}
	if m.settings.DefaultState == "" {
		m.settings.DefaultState = domain.StateEnabled
	}
	m.state = m.settings.DefaultState
	return m
}

// do runs fn under the manager lock and then delivers queued hooks and UI
// commands outside the lock. Batches from concurrent or re-entrant calls join
// one queue drained by a single caller, so they are delivered in the order
// they were produced.
func (m *Manager) do(ctx context.Context, fn func(context.Context) error) error {
	m.mu.Lock()
	m.hops = 0
	err := fn(ctx)
	for _, deliver := range m.outbox {
		m.pending = append(m.pending, func() { deliver(ctx) })
	}
	m.outbox = nil
	if m.draining {
		m.mu.Unlock()
		return err
	}
	m.draining = true
	for len(m.pending) > 0 {
		batch := m.pending
		m.pending = nil
		m.mu.Unlock()
		for _, deliver := range batch {
			deliver()
		}
		m.mu.Lock()
	}
	m.draining = false
	m.mu.Unlock()
	return err
}

// AddHooks chains hooks after the ones already registered.
func (m *Manager) AddHooks(hooks domain.LifecycleHooks) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = domain.ChainHooks(m.hooks, hooks)
}

// Name returns the manager name.
func (m *Manager) Name() string {
	return m.name
}

// State returns the current session state.
func (m *Manager) State() domain.ManagerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// DefaultState returns the state the manager reverts to on close.
func (m *Manager) DefaultState() domain.ManagerState {
	return m.settings.DefaultState
}

// Scheduler returns the scheduler driving the manager's timers.
func (m *Manager) Scheduler() ports.Scheduler {
	return m.sched
}

// Settings returns the dialogue settings in use.
func (m *Manager) Settings() domain.Settings {
	return m.settings
}

// SessionID returns the ID of the current or last session.
func (m *Manager) SessionID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionID
}

// SessionType returns who initiated the current or last session.
func (m *Manager) SessionType() domain.SessionType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessionType
}

// Graph returns the graph of the running session, or nil.
func (m *Manager) Graph() *domain.Graph {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graph == nil {
		return nil
	}
	return m.graph.graph
}

// Context returns a copy of the live context, or nil when idle.
func (m *Manager) Context() *domain.Context {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dctx.Clone()
}

// Snapshot flattens the current session into its replicated form. The
// sequence grows with every observable change.
func (m *Manager) Snapshot() domain.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dctx.Snapshot(m.sessionID, m.version, m.state)
}

// Suspension returns what the session is currently waiting for.
func (m *Manager) Suspension() Suspension {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := m.suspension
	s.Options = append([]domain.GUID(nil), s.Options...)
	return s
}

// SetState changes the manager state. Setting the current state is a no-op.
// Active cannot be set directly; leaving Active stops the running session.
func (m *Manager) SetState(ctx context.Context, state domain.ManagerState) error {
	return m.do(ctx, func(ctx context.Context) error {
		if !state.Valid() {
			return fmt.Errorf("set state: unknown state %q", state)
		}
		if state == m.state {
			m.logger.Debug("state unchanged", "session_id", m.sessionID, "state", state)
			return nil
		}
		if state == domain.StateActive {
			return fmt.Errorf("set state: %s is entered by starting a dialogue", state)
		}
		if m.state == domain.StateActive {
			m.closeLocked(ctx)
		}
		m.setStateLocked(state)
		return nil
	})
}

func (m *Manager) setStateLocked(state domain.ManagerState) {
	if state == m.state {
		m.logger.Debug("state unchanged", "session_id", m.sessionID, "state", state)
		return
	}
	m.state = state
	m.emit(domain.EventStateChanged, nil)
}

// emit queues an event carrying a copy of the context as it is now.
func (m *Manager) emit(typ domain.EventType, fill func(*domain.Event)) {
	e := &domain.Event{
		Timestamp: m.sched.Now(),
		Type:      typ,
		SessionID: m.sessionID,
		State:     m.state,
		Context:   m.dctx.Clone(),
	}
	if m.dctx != nil {
		e.Node = m.dctx.ActiveNode
	}
	if fill != nil {
		fill(e)
	}
	switch typ {
	case domain.EventDialogueStarted, domain.EventDialogueClosed, domain.EventStateChanged, domain.EventContextUpdated:
		m.version++
	}
	hooks := m.hooks
	m.outbox = append(m.outbox, func(ctx context.Context) {
		hooks.Emit(ctx, e)
	})
}

// fail reports a stage failure through OnDialogueFailed and returns it.
func (m *Manager) fail(stage string, err error) error {
	de := domain.StageError(stage, err)
	m.logger.Warn("dialogue failure", "session_id", m.sessionID, "stage", stage, "err", err)
	m.emit(domain.EventDialogueFailed, func(e *domain.Event) {
		e.Message = de.Error()
	})
	return de
}

// abort reports a failure and tears the session down.
func (m *Manager) abort(ctx context.Context, stage string, err error) error {
	de := m.fail(stage, err)
	m.closeLocked(ctx)
	return de
}

// checkContext guards every pipeline stage. A stale callback after close
// observes a nil context and silently returns false.
func (m *Manager) checkContext(ctx context.Context, stage string) bool {
	if m.dctx.IsValid() && m.graph != nil {
		return true
	}
	if m.state == domain.StateActive {
		m.abort(ctx, stage, domain.ErrInvalidContext)
	}
	return false
}

func (m *Manager) participant(id string) ports.Participant {
	for _, p := range m.participants {
		if p.ID() == id {
			return p
		}
	}
	return nil
}
