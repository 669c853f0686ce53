// Package host runs many dialogue sessions behind one transport. Each session
// gets its own Manager wrapped in a replication.Authority; requests are routed
// by session ID. The HTTP and MCP adapters drive sessions through a Host.
package host

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/internal/replication"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// ManagerFactory creates the Manager backing a new session.
type ManagerFactory func(sessionID string) *runtime.Manager

// Host keeps one Authority per session ID.
type Host struct {
	factory   ManagerFactory
	transport ports.Transport
	loader    ports.GraphLoader
	rows      ports.RowResolver
	logger    *slog.Logger
	authOpts  []replication.AuthorityOption

	mu           sync.Mutex
	sessions     map[string]*replication.Authority
	participants map[string]ports.Participant
}

// Option configures the Host.
type Option func(*Host)

// WithLogger configures a logger for the Host.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		h.logger = logger
	}
}

// WithAuthorityOptions is applied to every Authority the Host creates.
func WithAuthorityOptions(opts ...replication.AuthorityOption) Option {
	return func(h *Host) {
		h.authOpts = append(h.authOpts, opts...)
	}
}

// WithParticipants registers simulation participants by ID.
func WithParticipants(ps ...ports.Participant) Option {
	return func(h *Host) {
		for _, p := range ps {
			h.participants[p.ID()] = p
		}
	}
}

// New creates a Host. loader and rows back graph listings and the option
// labels of views; the factory decides how managers resolve graphs.
func New(factory ManagerFactory, transport ports.Transport, loader ports.GraphLoader, rows ports.RowResolver, opts ...Option) *Host {
	h := &Host{
		factory:      factory,
		transport:    transport,
		loader:       loader,
		rows:         rows,
		logger:       logging.NewNop(),
		sessions:     make(map[string]*replication.Authority),
		participants: make(map[string]ports.Participant),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Loader returns the graph loader of the Host.
func (h *Host) Loader() ports.GraphLoader {
	return h.loader
}

// Rows returns the row resolver of the Host.
func (h *Host) Rows() ports.RowResolver {
	return h.rows
}

// Transport returns the transport snapshots are mirrored over.
func (h *Host) Transport() ports.Transport {
	return h.transport
}

// Participant implements replication.Directory. Unknown IDs get an in-memory
// participant so sessions can be driven without a simulation behind them.
func (h *Host) Participant(id string) (ports.Participant, bool) {
	if id == "" {
		return nil, false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.participants[id]
	if !ok {
		p = memory.NewParticipant(id)
		h.participants[id] = p
	}
	return p, true
}

func (h *Host) authority(sessionID string, create bool) (*replication.Authority, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if a, ok := h.sessions[sessionID]; ok {
		return a, nil
	}
	if !create {
		return nil, fmt.Errorf("session %q: %w", sessionID, domain.ErrSessionNotFound)
	}
	opts := append([]replication.AuthorityOption{
		replication.WithLogger(h.logger),
		replication.WithDirectory(h),
	}, h.authOpts...)
	a := replication.NewAuthority(h.factory(sessionID), h.transport, opts...)
	h.sessions[sessionID] = a
	return a, nil
}

// Handle applies req to its session and returns the resulting snapshot.
// Start requests create the session when it does not exist yet.
func (h *Host) Handle(ctx context.Context, req ports.Request) (domain.Snapshot, error) {
	if req.SessionID == "" {
		return domain.Snapshot{}, fmt.Errorf("request without session: %w", domain.ErrSessionNotFound)
	}
	a, err := h.authority(req.SessionID, req.Kind == ports.RequestStart)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := a.HandleRequest(ctx, req); err != nil {
		return a.Manager().Snapshot(), err
	}
	// Mirror right away so callers that return the snapshot and peers agree.
	a.Flush(ctx)
	return a.Manager().Snapshot(), nil
}

// Manager returns the Manager of sessionID.
func (h *Host) Manager(sessionID string) (*runtime.Manager, error) {
	a, err := h.authority(sessionID, false)
	if err != nil {
		return nil, err
	}
	return a.Manager(), nil
}

// Snapshot returns the current snapshot of sessionID.
func (h *Host) Snapshot(sessionID string) (domain.Snapshot, error) {
	mgr, err := h.Manager(sessionID)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return mgr.Snapshot(), nil
}

// Sessions returns the known session IDs, sorted.
func (h *Host) Sessions() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	ids := make([]string, 0, len(h.sessions))
	for id := range h.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Forget closes sessionID and drops it from the Host.
func (h *Host) Forget(ctx context.Context, sessionID string) error {
	h.mu.Lock()
	a, ok := h.sessions[sessionID]
	delete(h.sessions, sessionID)
	h.mu.Unlock()
	if !ok {
		return fmt.Errorf("session %q: %w", sessionID, domain.ErrSessionNotFound)
	}
	err := a.Manager().Close(ctx)
	a.Close(ctx)
	return err
}

// Run consumes the transport's request stream until ctx is done.
func (h *Host) Run(ctx context.Context) error {
	reqs, err := h.transport.Requests(ctx)
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
			if _, err := h.Handle(ctx, req); err != nil {
				h.logger.Warn("request failed", "session_id", req.SessionID, "kind", req.Kind, "err", err)
			}
		}
	}
}

// Shutdown closes every session with a final flush.
func (h *Host) Shutdown(ctx context.Context) {
	for _, id := range h.Sessions() {
		if err := h.Forget(ctx, id); err != nil {
			h.logger.Debug("session close on shutdown", "session_id", id, "err", err)
		}
	}
}
