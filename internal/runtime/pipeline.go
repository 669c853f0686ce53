package runtime

import (
	"context"
	"fmt"
	"slices"

	"github.com/aretw0/parley/pkg/domain"
)

// enterNode runs the prepare and process stages for n and hands over to the
// node's own continuation.
func (m *Manager) enterNode(ctx context.Context, n *domain.Node) {
	if !m.checkContext(ctx, "prepare") {
		return
	}
	m.hops++
	if limit := len(m.graph.graph.Nodes)*2 + 8; m.hops > limit {
		m.abort(ctx, "prepare", fmt.Errorf("node %s: traversal did not pause after %d nodes", n.Label(), limit))
		return
	}

	m.resume()
	m.rowShown = false
	m.dctx.SetActiveNode(n.GUID, nil)
	m.dctx.ActiveRowTable, m.dctx.ActiveRowKey = n.RowTable, n.RowKey
	m.dctx.ActiveRow = nil
	m.dctx.ActiveRowDataIndex = 0
	m.emit(domain.EventNodeStarted, nil)

	b := behaviorFor(n.Kind)
	if b.preProcess != nil {
		b.preProcess(m, ctx, n)
	}
	m.graph.execute(ctx, n)

	var processErr error
	if b.process != nil {
		processErr = b.process(m, ctx, n)
	}
	m.dctx.RecordTraversal(n.GUID)
	m.emit(domain.EventContextUpdated, nil)

	if processErr != nil {
		// Content problems skip the node rather than the session.
		m.fail("process", processErr)
		m.completeNode(ctx)
		return
	}
	b.run(m, ctx, n)
}

// playRow starts the row-data entry at the current index.
func (m *Manager) playRow(ctx context.Context) {
	if !m.checkContext(ctx, "play row") {
		return
	}
	data, ok := m.dctx.ActiveRowData()
	if !ok {
		m.fail("play row", fmt.Errorf("row %s/%s index %d: %w",
			m.dctx.ActiveRowTable, m.dctx.ActiveRowKey, m.dctx.ActiveRowDataIndex, domain.ErrRowNotFound))
		m.completeNode(ctx)
		return
	}
	if !data.Valid() {
		m.fail("play row", fmt.Errorf("row %s/%s entry %d has no text",
			m.dctx.ActiveRowTable, m.dctx.ActiveRowKey, m.dctx.ActiveRowDataIndex))
		m.advanceRow(ctx, data.Execution)
		return
	}

	d := data.RowDuration(m.settings.DurationCoefficient)
	if m.rowShown {
		m.dispatch(domain.CommandUpdateRow)
	} else {
		m.dispatch(domain.CommandShowRow)
		m.rowShown = true
	}
	m.dispatch(domain.CommandShowSkip)
	m.emit(domain.EventRowStarted, func(e *domain.Event) { e.Duration = d })

	if data.Audio != nil {
		if p := m.participant(m.dctx.ActiveParticipant); p != nil {
			p.PlayVoice(ctx, *data.Audio)
		}
		cue := *data.Audio
		m.emit(domain.EventVoiceStarted, func(e *domain.Event) { e.Voice = &cue })
	}
	m.suspendFor(SuspendRow, d)
}

// finishRow ends the current entry. An AwaitInput entry that ran out on its
// own waits for a skip before the sequence continues.
func (m *Manager) finishRow(ctx context.Context, skipped bool) {
	if !m.checkContext(ctx, "finish row") {
		return
	}
	m.resume()
	data, _ := m.dctx.ActiveRowData()
	m.dispatch(domain.CommandHideSkip)
	m.emit(domain.EventRowFinished, nil)

	if data.Execution == domain.ExecutionAwaitInput && !skipped {
		m.suspendOn(SuspendAwaitInput, nil)
		m.emit(domain.EventContextUpdated, nil)
		return
	}
	m.advanceRow(ctx, data.Execution)
}

// advanceRow branches on the execution mode of the entry that just finished.
func (m *Manager) advanceRow(ctx context.Context, mode domain.ExecutionMode) {
	if mode == domain.ExecutionStopping {
		m.completeNode(ctx)
		return
	}
	if !m.dctx.SetRowDataIndex(m.dctx.ActiveRowDataIndex + 1) {
		m.completeNode(ctx)
		return
	}
	m.emit(domain.EventContextUpdated, nil)
	m.playRow(ctx)
}

// completeNode computes the next candidates and either closes the session,
// auto-selects a child or publishes the candidates as options.
func (m *Manager) completeNode(ctx context.Context) {
	if !m.checkContext(ctx, "complete node") {
		return
	}
	m.resume()
	node := m.graph.graph.Node(m.dctx.ActiveNode)
	if node == nil {
		m.abort(ctx, "complete node", fmt.Errorf("active node %s: %w", m.dctx.ActiveNode, domain.ErrNodeNotFound))
		return
	}
	if m.rowShown {
		m.dispatch(domain.CommandHideRow)
		m.rowShown = false
	}
	m.emit(domain.EventNodeFinished, nil)

	allowed := m.allowedChildren(ctx, node)
	ids := make([]domain.GUID, len(allowed))
	for i, c := range allowed {
		ids[i] = c.GUID
	}
	m.dctx.AllowedChildren = ids

	if len(allowed) == 0 {
		m.closeLocked(ctx)
		return
	}
	for _, c := range allowed {
		if c.AutoStarts {
			m.emit(domain.EventNodeSelected, func(e *domain.Event) { e.Node = c.GUID })
			m.enterNode(ctx, c)
			return
		}
	}

	m.suspendOn(SuspendSelection, ids)
	m.dispatch(domain.CommandAddOptions)
	m.emit(domain.EventContextUpdated, nil)
}

// allowedChildren filters the structural children of n by the node's child
// filter, their own structural eligibility and their decorators, sorted by
// execution order.
func (m *Manager) allowedChildren(ctx context.Context, n *domain.Node) []*domain.Node {
	var out []*domain.Node
	for _, c := range m.graph.graph.Children(n) {
		if n.Kind.Filters(c.Kind) || !c.CanStart() {
			continue
		}
		if !m.graph.evaluate(ctx, c) {
			continue
		}
		out = append(out, c)
	}
	domain.SortByExecutionOrder(out)
	return out
}

// AllowedChildren evaluates the candidates of node against the running session.
func (m *Manager) AllowedChildren(ctx context.Context, node domain.GUID) ([]domain.GUID, error) {
	var ids []domain.GUID
	err := m.do(ctx, func(ctx context.Context) error {
		if m.graph == nil || !m.dctx.IsValid() {
			return domain.ErrInvalidContext
		}
		n := m.graph.graph.Node(node)
		if n == nil {
			return fmt.Errorf("node %s: %w", node, domain.ErrNodeNotFound)
		}
		for _, c := range m.allowedChildren(ctx, n) {
			ids = append(ids, c.GUID)
		}
		return nil
	})
	return ids, err
}

// SelectNode answers a pending option selection.
func (m *Manager) SelectNode(ctx context.Context, id domain.GUID) error {
	return m.do(ctx, func(ctx context.Context) error {
		if !m.dctx.IsValid() || m.graph == nil {
			return m.fail("select node", domain.ErrInvalidContext)
		}
		if m.suspension.Kind != SuspendSelection || !slices.Contains(m.suspension.Options, id) {
			return m.fail("select node", fmt.Errorf("option %s: %w", id, domain.ErrNodeNotFound))
		}
		n := m.graph.graph.Node(id)
		if n == nil {
			return m.fail("select node", fmt.Errorf("option %s: %w", id, domain.ErrNodeNotFound))
		}
		m.resume()
		m.dispatch(domain.CommandRemoveOptions)
		m.emit(domain.EventNodeSelected, func(e *domain.Event) { e.Node = id })
		m.enterNode(ctx, n)
		return nil
	})
}

// Skip finishes the playing row, or releases an AwaitInput row that already
// finished. It is a no-op while the session waits for anything else.
func (m *Manager) Skip(ctx context.Context) error {
	return m.do(ctx, func(ctx context.Context) error {
		if !m.dctx.IsValid() || m.graph == nil {
			return m.fail("skip", domain.ErrInvalidContext)
		}
		switch m.suspension.Kind {
		case SuspendRow:
			data, _ := m.dctx.ActiveRowData()
			if data.Audio != nil {
				if p := m.participant(m.dctx.ActiveParticipant); p != nil {
					p.SkipVoice(ctx, *data.Audio)
				}
				cue := *data.Audio
				m.emit(domain.EventVoiceSkipped, func(e *domain.Event) { e.Voice = &cue })
			}
			m.resume()
			m.dispatch(domain.CommandHideSkip)
			m.emit(domain.EventRowFinished, nil)
			m.afterSkip(ctx)
		case SuspendAwaitInput:
			m.afterSkip(ctx)
		default:
			m.logger.Debug("skip ignored", "session_id", m.sessionID, "suspension", m.suspension.Kind)
		}
		return nil
	})
}

func (m *Manager) afterSkip(ctx context.Context) {
	if m.settings.SkipFade > 0 {
		m.suspendFor(SuspendSkipFade, m.settings.SkipFade)
		return
	}
	m.continueAfterSkip(ctx)
}

func (m *Manager) continueAfterSkip(ctx context.Context) {
	if m.settings.SkipWholeRow {
		m.completeNode(ctx)
		return
	}
	data, _ := m.dctx.ActiveRowData()
	m.advanceRow(ctx, data.Execution)
}

// Wake resumes the suspension identified by token. The scheduler calls it
// when a timer fires; stale tokens are ignored.
func (m *Manager) Wake(token uint64) {
	m.mu.Lock()
	ctx := m.baseCtx
	m.mu.Unlock()
	if ctx == nil {
		ctx = context.Background()
	}
	_ = m.do(ctx, func(ctx context.Context) error {
		m.wakeLocked(ctx, token)
		return nil
	})
}

func (m *Manager) wakeLocked(ctx context.Context, token uint64) {
	s := m.suspension
	if s.Kind == SuspendNone || s.Token != token {
		m.logger.Debug("stale wake ignored", "session_id", m.sessionID, "token", token)
		return
	}
	m.timer = 0
	switch s.Kind {
	case SuspendRow:
		m.finishRow(ctx, false)
	case SuspendDelay:
		m.completeNode(ctx)
	case SuspendReturn:
		if !m.checkContext(ctx, "return") {
			return
		}
		if n := m.graph.graph.Node(s.Node); n != nil {
			m.resume()
			m.jump(ctx, n)
			return
		}
		m.abort(ctx, "return", fmt.Errorf("node %s: %w", s.Node, domain.ErrNodeNotFound))
	case SuspendSkipFade:
		m.resume()
		m.continueAfterSkip(ctx)
	default:
		m.logger.Debug("wake ignored", "session_id", m.sessionID, "suspension", s.Kind)
	}
}
