package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// StartRequest describes a dialogue to start.
type StartRequest struct {
	// SessionID identifies the session towards peers. A random one is used when empty.
	SessionID string
	// Graph is used as is when set. Otherwise GraphName, or the graph carried
	// by Main, is resolved through the loader.
	Graph     *domain.Graph
	GraphName string

	Initiator    ports.Participant
	Main         ports.Participant
	Participants []ports.Participant
	Type         domain.SessionType
}

// Start validates the request and, on success, enters the node pipeline at the
// resolved starting node. Setup failures leave no partial state behind.
func (m *Manager) Start(ctx context.Context, req StartRequest) error {
	return m.do(ctx, func(ctx context.Context) error {
		return m.startLocked(ctx, req)
	})
}

func (m *Manager) startLocked(ctx context.Context, req StartRequest) error {
	if m.state == domain.StateActive {
		return m.fail("start", domain.ErrManagerActive)
	}

	var errs domain.AggregateError
	switch {
	case req.Initiator == nil:
		errs.Add(fmt.Errorf("missing initiator: %w", domain.ErrInvalidParticipant))
	case !req.Initiator.CanParticipate():
		errs.Add(fmt.Errorf("initiator %q cannot participate: %w", req.Initiator.ID(), domain.ErrInvalidParticipant))
	}
	switch {
	case req.Main == nil:
		errs.Add(fmt.Errorf("missing main participant: %w", domain.ErrInvalidParticipant))
	case !req.Main.CanStart():
		errs.Add(fmt.Errorf("participant %q refuses to start: %w", req.Main.ID(), domain.ErrInvalidParticipant))
	}
	if err := errs.ErrOrNil(); err != nil {
		return m.fail("start", err)
	}

	graph, err := m.resolveGraph(ctx, req)
	if err != nil {
		return m.fail("start", err)
	}
	start := m.startingNode(graph, req.Main)
	if start == nil {
		return m.fail("start", fmt.Errorf("graph %q has no startable node: %w", graph.Name, domain.ErrCannotStart))
	}

	members := m.gatherParticipants(req)
	inst, err := newGraphInstance(graph, m.registry, sessionHost{m})
	if err != nil {
		return m.fail("start", err)
	}

	m.sessionID = req.SessionID
	if m.sessionID == "" {
		m.sessionID = domain.NewGUID().String()
	}
	m.sessionType = req.Type
	if m.sessionType == "" {
		m.sessionType = domain.SessionPlayer
	}
	m.graph = inst
	m.participants = members
	m.initiator = req.Initiator
	m.baseCtx = context.WithoutCancel(ctx)

	player := ""
	if m.sessionType == domain.SessionPlayer {
		player = req.Initiator.ID()
	}
	others := make([]string, 0, len(members)-1)
	for _, p := range members[1:] {
		others = append(others, p.ID())
	}
	m.dctx = domain.NewContext(req.Main.ID(), player, others)
	m.dctx.SetActiveNode(start.GUID, nil)

	for _, p := range members {
		p.Initialize(ctx, m.name)
		p.SetState(domain.StateActive)
	}

	m.logger.Info("dialogue started",
		"session_id", m.sessionID,
		"graph", graph.Name,
		"start_node", start.Label(),
		"participants", len(members),
	)
	m.setStateLocked(domain.StateActive)
	m.emit(domain.EventDialogueStarted, nil)
	m.dispatch(domain.CommandCreateWidget)
	m.enterNode(ctx, start)
	return nil
}

func (m *Manager) resolveGraph(ctx context.Context, req StartRequest) (*domain.Graph, error) {
	g := req.Graph
	if g == nil {
		name := req.GraphName
		if name == "" {
			name = req.Main.DialogueGraph()
		}
		if name == "" {
			return nil, fmt.Errorf("participant %q carries no dialogue graph: %w", req.Main.ID(), domain.ErrGraphNotFound)
		}
		if m.loader == nil {
			return nil, fmt.Errorf("no loader for graph %q: %w", name, domain.ErrGraphNotFound)
		}
		var err error
		if g, err = m.loader.Graph(ctx, name); err != nil {
			return nil, err
		}
	}
	if !g.CanStartDialogueGraph() {
		return nil, fmt.Errorf("graph %q: %w", g.Name, domain.ErrCannotStart)
	}
	return g, nil
}

// startingNode prefers the participant's saved node while it is still
// startable and falls back to the first child of Start.
func (m *Manager) startingNode(g *domain.Graph, main ports.Participant) *domain.Node {
	if saved := main.SavedStartingNode(); saved != domain.NilGUID {
		if n := g.Node(saved); n != nil && n.Kind != domain.KindStart && n.CanStart() {
			return n
		}
		m.logger.Debug("saved starting node ignored", "participant", main.ID(), "node", saved)
	}
	return g.FirstNode()
}

// gatherParticipants returns main first, then the initiator, then every
// secondary participant willing to take part.
func (m *Manager) gatherParticipants(req StartRequest) []ports.Participant {
	members := []ports.Participant{req.Main}
	add := func(p ports.Participant) {
		for _, existing := range members {
			if existing.ID() == p.ID() {
				return
			}
		}
		members = append(members, p)
	}
	add(req.Initiator)
	for _, p := range req.Participants {
		if p == nil {
			continue
		}
		if !p.CanParticipate() {
			m.logger.Debug("participant skipped", "participant", p.ID())
			continue
		}
		add(p)
	}
	return members
}
