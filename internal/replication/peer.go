package replication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/adapters/clock"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

const (
	// DefaultRetryLimit caps how often a stage waits for a context.
	DefaultRetryLimit = 10
	// DefaultRetryInterval is one frame.
	DefaultRetryInterval = 16 * time.Millisecond
)

// Peer mirrors a session owned by a remote Authority. Its context changes
// only through Apply; every mutation is forwarded as a request.
//
// All methods are safe for concurrent use.
type Peer struct {
	transport ports.Transport
	sessionID string
	rows      ports.RowResolver
	sched     ports.Scheduler
	hooks     domain.LifecycleHooks
	logger    *slog.Logger

	retryLimit    int
	retryInterval time.Duration

	owned *clock.Scheduler

	mu      sync.Mutex
	dctx    *domain.Context
	state   domain.ManagerState
	seq     uint64
	applied bool
	widgets []ports.UserInterface
	// signal is closed and replaced whenever a snapshot changes the mirror.
	signal chan struct{}
}

// PeerOption configures the Peer.
type PeerOption func(*Peer)

// WithPeerLogger configures a logger for the Peer.
func WithPeerLogger(logger *slog.Logger) PeerOption {
	return func(p *Peer) {
		p.logger = logger
	}
}

// WithRows lets the peer resolve the active row of mirrored contexts.
func WithRows(rows ports.RowResolver) PeerOption {
	return func(p *Peer) {
		p.rows = rows
	}
}

// WithPeerHooks registers local callbacks fired when a snapshot is applied.
func WithPeerHooks(hooks domain.LifecycleHooks) PeerOption {
	return func(p *Peer) {
		p.hooks = hooks
	}
}

// WithScheduler sets the scheduler stage retries wait on.
func WithScheduler(s ports.Scheduler) PeerOption {
	return func(p *Peer) {
		p.sched = s
	}
}

// WithRetry bounds how often and how long RunStage waits for a valid context.
func WithRetry(limit int, interval time.Duration) PeerOption {
	return func(p *Peer) {
		p.retryLimit = limit
		if interval > 0 {
			p.retryInterval = interval
		}
	}
}

// WithWidget registers a UI surface fed with mirrored UI commands.
func WithWidget(ui ports.UserInterface) PeerOption {
	return func(p *Peer) {
		p.widgets = append(p.widgets, ui)
	}
}

// NewPeer creates a mirror of sessionID. Without WithScheduler a wall-clock
// scheduler is used.
func NewPeer(transport ports.Transport, sessionID string, opts ...PeerOption) *Peer {
	p := &Peer{
		transport:     transport,
		sessionID:     sessionID,
		logger:        logging.NewNop(),
		retryLimit:    DefaultRetryLimit,
		retryInterval: DefaultRetryInterval,
		state:         domain.StateEnabled,
		signal:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sched == nil {
		p.owned = clock.New()
		p.sched = p.owned
	}
	return p
}

// Shutdown releases the scheduler the peer created for itself.
func (p *Peer) Shutdown() {
	if p.owned != nil {
		p.owned.Stop()
	}
}

// SessionID returns the mirrored session.
func (p *Peer) SessionID() string {
	return p.sessionID
}

func (p *Peer) send(ctx context.Context, req ports.Request) error {
	req.SessionID = p.sessionID
	if err := p.transport.SendRequest(ctx, req); err != nil {
		return fmt.Errorf("send %s request: %w", req.Kind, err)
	}
	return nil
}

// Start asks the authority to start graph with initiator and participants;
// the first participant is the main one.
func (p *Peer) Start(ctx context.Context, graph, initiator string, participants ...string) error {
	return p.send(ctx, ports.Request{
		Kind:         ports.RequestStart,
		Graph:        graph,
		Initiator:    initiator,
		Participants: participants,
	})
}

// Close asks the authority to close the session.
func (p *Peer) Close(ctx context.Context) error {
	return p.send(ctx, ports.Request{Kind: ports.RequestClose})
}

// Select asks the authority to pick option node.
func (p *Peer) Select(ctx context.Context, node domain.GUID) error {
	return p.send(ctx, ports.Request{Kind: ports.RequestSelect, Node: node})
}

// Skip asks the authority to skip the playing row.
func (p *Peer) Skip(ctx context.Context) error {
	return p.send(ctx, ports.Request{Kind: ports.RequestSkip})
}

// SetState asks the authority to change state. The local state follows once
// the change is mirrored back.
func (p *Peer) SetState(ctx context.Context, state domain.ManagerState) error {
	return p.send(ctx, ports.Request{Kind: ports.RequestSetState, State: state})
}

// Context returns a copy of the mirrored context, or nil.
func (p *Peer) Context() *domain.Context {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dctx.Clone()
}

// State returns the mirrored manager state.
func (p *Peer) State() domain.ManagerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Sequence returns the sequence of the last applied snapshot.
func (p *Peer) Sequence() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.seq
}

// Apply merges s into the mirror. Snapshots of other sessions and snapshots
// not newer than the last applied one are ignored. Widget commands implied by
// the merge are dispatched before the mirrored one, and a command equal to the
// last one dispatched is not sent again. It reports whether s was applied.
func (p *Peer) Apply(ctx context.Context, s domain.Snapshot) bool {
	p.mu.Lock()
	if s.SessionID != p.sessionID || (p.applied && s.Sequence <= p.seq) {
		p.mu.Unlock()
		p.logger.Debug("snapshot ignored", "session_id", s.SessionID, "seq", s.Sequence)
		return false
	}
	p.applied = true
	p.seq = s.Sequence

	var out []func()
	emit := func(typ domain.EventType) {
		e := &domain.Event{
			Timestamp: p.sched.Now(),
			Type:      typ,
			SessionID: p.sessionID,
			State:     p.state,
			Context:   p.dctx.Clone(),
		}
		if p.dctx != nil {
			e.Node = p.dctx.ActiveNode
		}
		hooks := p.hooks
		out = append(out, func() { hooks.Emit(ctx, e) })
	}
	dispatch := func(cmd domain.UICommand) {
		widgets := append([]ports.UserInterface(nil), p.widgets...)
		snapshot := p.dctx.Clone()
		out = append(out, func() {
			for _, w := range widgets {
				w.Execute(cmd, snapshot)
			}
		})
	}

	changed := false
	if s.State != "" && s.State != p.state {
		p.state = s.State
		changed = true
		emit(domain.EventStateChanged)
	}

	switch {
	case s.Closed():
		if p.dctx != nil {
			last := p.dctx.LastUICommand
			p.dctx = nil
			changed = true
			if last != domain.CommandCloseWidget {
				dispatch(domain.CommandCloseWidget)
			}
			emit(domain.EventDialogueClosed)
		}
	default:
		started := p.dctx == nil
		if started {
			p.dctx = &domain.Context{Local: make(map[string]any)}
		}
		prevNode, prevIndex := p.dctx.ActiveNode, p.dctx.ActiveRowDataIndex
		hadOptions := len(p.dctx.AllowedChildren) > 0
		last := p.dctx.LastUICommand
		if p.dctx.Merge(s) || started {
			changed = true
			p.resolveRow(ctx)
			if started {
				emit(domain.EventDialogueStarted)
			}
			emit(domain.EventContextUpdated)
		}
		send := func(cmd domain.UICommand) {
			if cmd == "" || cmd == last {
				return
			}
			last = cmd
			dispatch(cmd)
		}
		for _, cmd := range lifecycleCommands(started, prevNode, prevIndex, hadOptions, p.dctx) {
			send(cmd)
		}
		send(s.LastUICommand)
	}

	if changed {
		close(p.signal)
		p.signal = make(chan struct{})
	}
	p.mu.Unlock()

	for _, deliver := range out {
		deliver()
	}
	return true
}

// lifecycleCommands derives the widget commands implied by a merge. Only the
// last command of a burst is mirrored, so creating the widget, showing a new
// node's row and swapping options are rebuilt from what changed.
func lifecycleCommands(started bool, prevNode domain.GUID, prevIndex int, hadOptions bool, c *domain.Context) []domain.UICommand {
	var cmds []domain.UICommand
	if started {
		cmds = append(cmds, domain.CommandCreateWidget)
	}
	nodeChanged := started || c.ActiveNode != prevNode
	if nodeChanged && hadOptions {
		cmds = append(cmds, domain.CommandRemoveOptions)
	}
	switch {
	case c.ActiveRowTable == "":
	case nodeChanged:
		cmds = append(cmds, domain.CommandShowRow)
	case c.ActiveRowDataIndex != prevIndex:
		cmds = append(cmds, domain.CommandUpdateRow)
	}
	if len(c.AllowedChildren) > 0 && (nodeChanged || !hadOptions) {
		cmds = append(cmds, domain.CommandAddOptions)
	}
	return cmds
}

// resolveRow loads the row a merge dropped. Lookup failures leave it unset.
func (p *Peer) resolveRow(ctx context.Context) {
	if p.rows == nil || p.dctx.ActiveRow != nil || p.dctx.ActiveRowTable == "" {
		return
	}
	row, err := p.rows.Row(ctx, p.dctx.ActiveRowTable, p.dctx.ActiveRowKey)
	if err != nil {
		p.logger.Debug("mirrored row unresolved", "session_id", p.sessionID, "err", err)
		return
	}
	p.dctx.ActiveRow = row
}

// Run applies the authority's snapshots until ctx is done.
func (p *Peer) Run(ctx context.Context) error {
	snaps, err := p.transport.Snapshots(ctx, p.sessionID)
	if err != nil {
		return fmt.Errorf("subscribe snapshots: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case s, ok := <-snaps:
			if !ok {
				return nil
			}
			p.Apply(ctx, s)
		}
	}
}

// RunStage runs fn with the mirrored context once it is valid. While it is not,
// the stage waits for the next applied snapshot or one retry interval,
// whichever comes first, at most retryLimit times. It then reports
// ErrRetryExhausted through OnDialogueFailed and returns it.
func (p *Peer) RunStage(ctx context.Context, stage string, fn func(*domain.Context)) error {
	for attempt := 0; ; attempt++ {
		p.mu.Lock()
		c := p.dctx.Clone()
		signal := p.signal
		p.mu.Unlock()

		if c.IsValid() {
			fn(c)
			return nil
		}
		if attempt >= p.retryLimit {
			err := domain.StageError(stage, fmt.Errorf("no valid context after %d attempts: %w", attempt, domain.ErrRetryExhausted))
			p.logger.Warn("peer stage gave up", "session_id", p.sessionID, "stage", stage, "attempts", attempt)
			p.hooks.Emit(ctx, &domain.Event{
				Timestamp: p.sched.Now(),
				Type:      domain.EventDialogueFailed,
				SessionID: p.sessionID,
				State:     p.State(),
				Message:   err.Error(),
			})
			return err
		}

		tick := make(chan struct{})
		h := p.sched.Schedule(p.retryInterval, func() { close(tick) })
		select {
		case <-tick:
		case <-signal:
			p.sched.Cancel(h)
		case <-ctx.Done():
			p.sched.Cancel(h)
			return ctx.Err()
		}
	}
}
