package runtime

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"slices"

	"github.com/aretw0/parley/pkg/decorator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// graphInstance is the per-session runtime view of a graph. The authored
// graph is shared and never mutated; decorator instances live here and are
// indexed by the node that owns them.
type graphInstance struct {
	graph  *domain.Graph
	nodes  map[domain.GUID][]decorator.Decorator
	shared []decorator.Decorator
}

func newGraphInstance(g *domain.Graph, reg *decorator.Registry, host decorator.Host) (*graphInstance, error) {
	gi := &graphInstance{graph: g, nodes: make(map[domain.GUID][]decorator.Decorator)}
	var errs domain.AggregateError
	for _, n := range g.Nodes {
		for i, spec := range n.Decorators {
			d, err := reg.Build(spec)
			if err != nil {
				errs.Add(fmt.Errorf("node %s decorator %d: %w", n.Label(), i, err))
				continue
			}
			d.Initialize(host, decorator.Owner{Graph: g, Node: n})
			gi.nodes[n.GUID] = append(gi.nodes[n.GUID], d)
		}
	}
	for i, spec := range g.Decorators {
		d, err := reg.Build(spec)
		if err != nil {
			errs.Add(fmt.Errorf("graph %s decorator %d: %w", g.Name, i, err))
			continue
		}
		d.Initialize(host, decorator.Owner{Graph: g})
		gi.shared = append(gi.shared, d)
	}
	if err := errs.ErrOrNil(); err != nil {
		return nil, err
	}
	return gi, nil
}

// decorators returns the node's own decorators followed by the graph
// decorators when the node inherits them, both in authored order.
func (gi *graphInstance) decorators(n *domain.Node) []decorator.Decorator {
	own := gi.nodes[n.GUID]
	if !n.InheritGraphDecorators || len(gi.shared) == 0 {
		return own
	}
	return slices.Concat(own, gi.shared)
}

func (gi *graphInstance) evaluate(ctx context.Context, n *domain.Node) bool {
	for _, d := range gi.decorators(n) {
		if !d.Evaluate(ctx, n) {
			return false
		}
	}
	return true
}

func (gi *graphInstance) execute(ctx context.Context, n *domain.Node) {
	for _, d := range gi.decorators(n) {
		d.Execute(ctx, n)
	}
}

// shutdown cleans every decorator instance up. The authored graph is untouched.
func (gi *graphInstance) shutdown() {
	for _, ds := range gi.nodes {
		for _, d := range ds {
			d.Cleanup()
		}
	}
	for _, d := range gi.shared {
		d.Cleanup()
	}
}

// sessionHost exposes the running session to decorators. Decorators only run
// inside manager operations, so the lock is already held.
type sessionHost struct {
	m *Manager
}

func (h sessionHost) DialogueContext() *domain.Context { return h.m.dctx }
func (h sessionHost) Rows() ports.RowResolver          { return h.m.rows }
func (h sessionHost) Scheduler() ports.Scheduler       { return h.m.sched }
func (h sessionHost) Rand() *rand.Rand                 { return h.m.rng }
func (h sessionHost) Logger() *slog.Logger             { return h.m.logger }

func (h sessionHost) Participant(id string) (ports.Participant, bool) {
	p := h.m.participant(id)
	return p, p != nil
}

func (h sessionHost) Participants() []ports.Participant {
	return append([]ports.Participant(nil), h.m.participants...)
}
