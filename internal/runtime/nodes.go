package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
)

// nodeBehavior is the per-kind part of the pipeline. preProcess runs during
// preparation, before decorators; process runs before the node is recorded in
// the traversal history; run continues the pipeline afterwards.
type nodeBehavior struct {
	preProcess func(m *Manager, ctx context.Context, n *domain.Node)
	process    func(m *Manager, ctx context.Context, n *domain.Node) error
	run        func(m *Manager, ctx context.Context, n *domain.Node)
}

func behaviorFor(kind domain.NodeKind) nodeBehavior {
	switch kind {
	case domain.KindLead, domain.KindAnswer:
		return nodeBehavior{
			preProcess: (*Manager).matchParticipant,
			process:    (*Manager).resolveRow,
			run:        func(m *Manager, ctx context.Context, _ *domain.Node) { m.playRow(ctx) },
		}
	case domain.KindDelay:
		return nodeBehavior{
			run: func(m *Manager, _ context.Context, n *domain.Node) { m.suspendFor(SuspendDelay, n.Delay) },
		}
	case domain.KindReturnTo:
		return nodeBehavior{run: (*Manager).runReturnTo}
	case domain.KindAutoComplete:
		return nodeBehavior{
			run: func(m *Manager, ctx context.Context, _ *domain.Node) { m.closeLocked(ctx) },
		}
	}
	// Start and Complete carry nothing and finish immediately.
	return nodeBehavior{
		run: func(m *Manager, ctx context.Context, _ *domain.Node) { m.completeNode(ctx) },
	}
}

// matchParticipant picks the speaker of a content node. The first participant
// whose tag is compatible with the row wins. Rows without tags are voiced by
// their own participant when it takes part; otherwise the first participant
// of the set speaks.
func (m *Manager) matchParticipant(ctx context.Context, n *domain.Node) {
	row, err := m.rows.Row(ctx, n.RowTable, n.RowKey)
	if err != nil {
		return
	}
	if len(row.CompatibleTags) > 0 {
		for _, p := range m.participants {
			if row.HasTag(p.Tag()) {
				m.dctx.SetActiveParticipant(p.ID())
				return
			}
		}
	} else if m.dctx.SetActiveParticipant(row.Participant) {
		return
	}
	if len(m.dctx.Participants) > 0 {
		m.dctx.SetActiveParticipant(m.dctx.Participants[0])
	}
}

// resolveRow loads the row the context points at. Decorators run before this
// and may have redirected the table or key.
func (m *Manager) resolveRow(ctx context.Context, n *domain.Node) error {
	table, key := m.dctx.ActiveRowTable, m.dctx.ActiveRowKey
	row, err := m.rows.Row(ctx, table, key)
	if err != nil {
		return fmt.Errorf("node %s: %w", n.Label(), err)
	}
	if !row.Valid() {
		return fmt.Errorf("node %s: row %s/%s is not playable: %w", n.Label(), table, key, domain.ErrRowNotFound)
	}
	m.dctx.SetActiveRow(table, key, row)
	return nil
}

func (m *Manager) runReturnTo(ctx context.Context, n *domain.Node) {
	if n.Delay > 0 {
		m.suspendFor(SuspendReturn, n.Delay)
		return
	}
	m.jump(ctx, n)
}

// jump follows the non-structural edge of a ReturnTo node.
func (m *Manager) jump(ctx context.Context, n *domain.Node) {
	target := m.graph.graph.Node(n.ReturnTarget)
	if target == nil {
		m.abort(ctx, "return", fmt.Errorf("node %s target %s: %w", n.Label(), n.ReturnTarget, domain.ErrNodeNotFound))
		return
	}
	m.emit(domain.EventNodeSelected, func(e *domain.Event) { e.Node = target.GUID })
	m.enterNode(ctx, target)
}
