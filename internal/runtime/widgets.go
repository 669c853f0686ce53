package runtime

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// RegisterWidget adds a UI surface that receives every dispatched command.
// Registering the same ID twice is a no-op.
func (m *Manager) RegisterWidget(ctx context.Context, ui ports.UserInterface) {
	_ = m.do(ctx, func(context.Context) error {
		for _, w := range m.widgets {
			if w.ID() == ui.ID() {
				return nil
			}
		}
		m.widgets = append(m.widgets, ui)
		m.emit(domain.EventUserInterfaceChanged, func(e *domain.Event) {
			e.WidgetClass = fmt.Sprintf("%T", ui)
			e.Widget = ui.ID()
			e.Message = "registered"
		})
		return nil
	})
}

// UnregisterWidget removes the UI surface with the given ID.
func (m *Manager) UnregisterWidget(ctx context.Context, id string) {
	_ = m.do(ctx, func(context.Context) error {
		for i, w := range m.widgets {
			if w.ID() != id {
				continue
			}
			m.widgets = append(m.widgets[:i], m.widgets[i+1:]...)
			m.emit(domain.EventUserInterfaceChanged, func(e *domain.Event) {
				e.WidgetClass = fmt.Sprintf("%T", w)
				e.Widget = id
				e.Message = "unregistered"
			})
			return nil
		}
		return nil
	})
}

// Widgets returns the registered UI surfaces.
func (m *Manager) Widgets() []ports.UserInterface {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ports.UserInterface(nil), m.widgets...)
}

// dispatch records cmd as the last UI command and queues it for every widget.
func (m *Manager) dispatch(cmd domain.UICommand) {
	var snapshot *domain.Context
	if m.dctx != nil {
		m.dctx.LastUICommand = cmd
		snapshot = m.dctx.Clone()
		m.version++
	}
	widgets := append([]ports.UserInterface(nil), m.widgets...)
	m.outbox = append(m.outbox, func(context.Context) {
		for _, w := range widgets {
			w.Execute(cmd, snapshot)
		}
	})
	if cmd == domain.CommandCreateWidget || cmd == domain.CommandCloseWidget {
		m.emit(domain.EventUserInterfaceChanged, func(e *domain.Event) {
			e.Message = string(cmd)
		})
	}
}
