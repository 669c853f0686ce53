package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventDialogueStarted      EventType = "dialogue_started"
	EventDialogueClosed       EventType = "dialogue_closed"
	EventDialogueFailed       EventType = "dialogue_failed"
	EventStateChanged         EventType = "manager_state_changed"
	EventContextUpdated       EventType = "context_updated"
	EventNodeStarted          EventType = "node_started"
	EventNodeSelected         EventType = "node_selected"
	EventNodeFinished         EventType = "node_finished"
	EventRowStarted           EventType = "row_started"
	EventRowFinished          EventType = "row_finished"
	EventVoiceStarted         EventType = "voice_started"
	EventVoiceSkipped         EventType = "voice_skipped"
	EventUserInterfaceChanged EventType = "user_interface_changed"
)

// Event is delivered synchronously to local subscribers in emission order.
type Event struct {
	Timestamp time.Time    `json:"timestamp"`
	Type      EventType    `json:"type"`
	SessionID string       `json:"session_id"`
	State     ManagerState `json:"state,omitempty"`

	// Context is a copy taken at emission time; nil once the session closed.
	Context *Context  `json:"context,omitempty"`
	Node    GUID      `json:"node,omitempty"`
	Message string    `json:"message,omitempty"`
	Voice   *AudioCue `json:"voice,omitempty"`

	// WidgetClass and Widget describe the UI surface for UI change events.
	WidgetClass string `json:"widget_class,omitempty"`
	Widget      string `json:"widget,omitempty"`

	// Duration is the computed playback time of a started row.
	Duration time.Duration `json:"duration,omitempty"`
}

// LifecycleHooks defines fire-and-forget callbacks for dialogue signals.
type LifecycleHooks struct {
	OnDialogueStarted      func(context.Context, *Event)
	OnDialogueClosed       func(context.Context, *Event)
	OnDialogueFailed       func(context.Context, *Event)
	OnStateChanged         func(context.Context, *Event)
	OnContextUpdated       func(context.Context, *Event)
	OnNodeStarted          func(context.Context, *Event)
	OnNodeSelected         func(context.Context, *Event)
	OnNodeFinished         func(context.Context, *Event)
	OnRowStarted           func(context.Context, *Event)
	OnRowFinished          func(context.Context, *Event)
	OnVoiceStarted         func(context.Context, *Event)
	OnVoiceSkipped         func(context.Context, *Event)
	OnUserInterfaceChanged func(context.Context, *Event)
}

// Emit routes e to the matching callback, if any.
func (h LifecycleHooks) Emit(ctx context.Context, e *Event) {
	var fn func(context.Context, *Event)
	switch e.Type {
	case EventDialogueStarted:
		fn = h.OnDialogueStarted
	case EventDialogueClosed:
		fn = h.OnDialogueClosed
	case EventDialogueFailed:
		fn = h.OnDialogueFailed
	case EventStateChanged:
		fn = h.OnStateChanged
	case EventContextUpdated:
		fn = h.OnContextUpdated
	case EventNodeStarted:
		fn = h.OnNodeStarted
	case EventNodeSelected:
		fn = h.OnNodeSelected
	case EventNodeFinished:
		fn = h.OnNodeFinished
	case EventRowStarted:
		fn = h.OnRowStarted
	case EventRowFinished:
		fn = h.OnRowFinished
	case EventVoiceStarted:
		fn = h.OnVoiceStarted
	case EventVoiceSkipped:
		fn = h.OnVoiceSkipped
	case EventUserInterfaceChanged:
		fn = h.OnUserInterfaceChanged
	}
	if fn != nil {
		fn(ctx, e)
	}
}

// Listen returns hooks whose every callback forwards to fn.
func Listen(fn func(context.Context, *Event)) LifecycleHooks {
	return LifecycleHooks{
		OnDialogueStarted:      fn,
		OnDialogueClosed:       fn,
		OnDialogueFailed:       fn,
		OnStateChanged:         fn,
		OnContextUpdated:       fn,
		OnNodeStarted:          fn,
		OnNodeSelected:         fn,
		OnNodeFinished:         fn,
		OnRowStarted:           fn,
		OnRowFinished:          fn,
		OnVoiceStarted:         fn,
		OnVoiceSkipped:         fn,
		OnUserInterfaceChanged: fn,
	}
}

// ChainHooks returns hooks that call each of hooks in order.
func ChainHooks(hooks ...LifecycleHooks) LifecycleHooks {
	return Listen(func(ctx context.Context, e *Event) {
		for _, h := range hooks {
			h.Emit(ctx, e)
		}
	})
}
