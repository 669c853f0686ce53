package runtime

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// Close ends the running session from any pipeline stage. Closing an idle
// manager is a no-op.
func (m *Manager) Close(ctx context.Context) error {
	return m.do(ctx, func(ctx context.Context) error {
		m.closeLocked(ctx)
		return nil
	})
}

// closeLocked stops every participant, releases the UI, shuts the graph
// instance down and discards the context. The manager ends in its default state.
func (m *Manager) closeLocked(ctx context.Context) {
	if m.dctx == nil && m.graph == nil {
		return
	}
	m.resume()

	var path []domain.TraversedNode
	if m.dctx != nil {
		path = m.dctx.TraversedPath
	}
	for _, p := range m.participants {
		p.SaveTraversedPath(path)
		p.SetState(p.DefaultState())
	}
	if m.rowShown {
		m.dispatch(domain.CommandHideRow)
		m.rowShown = false
	}
	m.dispatch(domain.CommandCloseWidget)
	if m.graph != nil {
		m.graph.shutdown()
	}

	m.logger.Info("dialogue closed", "session_id", m.sessionID)
	m.dctx = nil
	m.graph = nil
	m.participants = nil
	m.initiator = nil
	m.baseCtx = nil

	m.setStateLocked(m.settings.DefaultState)
	m.emit(domain.EventDialogueClosed, nil)
}
