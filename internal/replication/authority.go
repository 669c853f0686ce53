package replication

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// DefaultDebounce is the pair of delays after which a burst of changes is mirrored.
var DefaultDebounce = []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}

// Authority owns a Manager on behalf of remote peers.
type Authority struct {
	mgr       *runtime.Manager
	transport ports.Transport
	store     ports.SnapshotStore
	directory Directory
	logger    *slog.Logger
	debounce  []time.Duration

	mu       sync.Mutex
	armed    bool
	timers   []ports.TimerHandle
	lastSent uint64
	sent     bool
}

// AuthorityOption configures the Authority.
type AuthorityOption func(*Authority)

// WithLogger configures a logger for the Authority.
func WithLogger(logger *slog.Logger) AuthorityOption {
	return func(a *Authority) {
		a.logger = logger
	}
}

// WithStore persists every mirrored snapshot.
func WithStore(store ports.SnapshotStore) AuthorityOption {
	return func(a *Authority) {
		a.store = store
	}
}

// WithDirectory resolves the participants named by start requests.
func WithDirectory(d Directory) AuthorityOption {
	return func(a *Authority) {
		a.directory = d
	}
}

// WithDebounce sets the delays after the first change of a burst at which the
// latest snapshot is mirrored. No delays mirrors every change immediately.
func WithDebounce(delays ...time.Duration) AuthorityOption {
	return func(a *Authority) {
		a.debounce = append([]time.Duration(nil), delays...)
	}
}

// NewAuthority wraps mgr and starts mirroring its changes over transport.
func NewAuthority(mgr *runtime.Manager, transport ports.Transport, opts ...AuthorityOption) *Authority {
	a := &Authority{
		mgr:       mgr,
		transport: transport,
		directory: Participants{},
		logger:    logging.NewNop(),
		debounce:  DefaultDebounce,
	}
	for _, opt := range opts {
		opt(a)
	}
	mgr.AddHooks(domain.LifecycleHooks{
		OnDialogueStarted: a.changed,
		OnDialogueClosed:  a.changed,
		OnStateChanged:    a.changed,
		OnContextUpdated:  a.changed,
		OnNodeSelected:    a.changed,
	})
	return a
}

// Manager returns the wrapped manager.
func (a *Authority) Manager() *runtime.Manager {
	return a.mgr
}

// HandleRequest applies a peer request to the manager.
func (a *Authority) HandleRequest(ctx context.Context, req ports.Request) error {
	if req.Kind != ports.RequestStart && req.SessionID != a.mgr.SessionID() {
		return fmt.Errorf("%s request for %q: %w", req.Kind, req.SessionID, domain.ErrSessionNotFound)
	}
	a.logger.Debug("request received", "session_id", req.SessionID, "kind", req.Kind)

	switch req.Kind {
	case ports.RequestStart:
		return a.start(ctx, req)
	case ports.RequestClose:
		return a.mgr.Close(ctx)
	case ports.RequestSelect:
		return a.mgr.SelectNode(ctx, req.Node)
	case ports.RequestSkip:
		return a.mgr.Skip(ctx)
	case ports.RequestSetState:
		return a.mgr.SetState(ctx, req.State)
	}
	return fmt.Errorf("unknown request kind %q", req.Kind)
}

func (a *Authority) start(ctx context.Context, req ports.Request) error {
	sr := runtime.StartRequest{SessionID: req.SessionID, GraphName: req.Graph}
	if p, ok := a.directory.Participant(req.Initiator); ok {
		sr.Initiator = p
	}
	for i, id := range req.Participants {
		p, ok := a.directory.Participant(id)
		if !ok {
			a.logger.Warn("unknown participant in request", "session_id", req.SessionID, "participant", id)
			continue
		}
		if i == 0 {
			sr.Main = p
			continue
		}
		sr.Participants = append(sr.Participants, p)
	}
	return a.mgr.Start(ctx, sr)
}

// Run consumes the transport's request stream until ctx is done.
func (a *Authority) Run(ctx context.Context) error {
	reqs, err := a.transport.Requests(ctx)
	if err != nil {
		return fmt.Errorf("subscribe requests: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case req, ok := <-reqs:
			if !ok {
				return nil
			}
			if err := a.HandleRequest(ctx, req); err != nil {
				a.logger.Warn("request failed", "session_id", req.SessionID, "kind", req.Kind, "err", err)
			}
		}
	}
}

// changed arms the debounce timers on the first change of a burst.
func (a *Authority) changed(ctx context.Context, _ *domain.Event) {
	if len(a.debounce) == 0 {
		a.Flush(ctx)
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.armed {
		return
	}
	a.armed = true
	sched := a.mgr.Scheduler()
	detached := context.WithoutCancel(ctx)
	for i, d := range a.debounce {
		last := i == len(a.debounce)-1
		a.timers = append(a.timers, sched.Schedule(d, func() {
			if last {
				a.mu.Lock()
				a.armed = false
				a.timers = nil
				a.mu.Unlock()
			}
			a.Flush(detached)
		}))
	}
}

// Flush mirrors the latest snapshot now. Snapshots already sent are skipped.
func (a *Authority) Flush(ctx context.Context) {
	snap := a.mgr.Snapshot()

	a.mu.Lock()
	if a.sent && snap.Sequence <= a.lastSent {
		a.mu.Unlock()
		return
	}
	a.sent = true
	a.lastSent = snap.Sequence
	a.mu.Unlock()

	if err := a.transport.Broadcast(ctx, snap); err != nil {
		a.logger.Warn("broadcast failed", "session_id", snap.SessionID, "seq", snap.Sequence, "err", err)
	}
	if a.store != nil && snap.SessionID != "" {
		if err := a.store.Save(ctx, snap); err != nil {
			a.logger.Warn("snapshot persist failed", "session_id", snap.SessionID, "err", err)
		}
	}
}

// Close cancels pending debounce timers after a final flush.
func (a *Authority) Close(ctx context.Context) {
	a.mu.Lock()
	sched := a.mgr.Scheduler()
	for _, h := range a.timers {
		sched.Cancel(h)
	}
	a.timers = nil
	a.armed = false
	a.mu.Unlock()
	a.Flush(ctx)
}
