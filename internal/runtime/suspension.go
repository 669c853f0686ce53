package runtime

import (
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// SuspensionKind names what a session waits for between two pipeline steps.
type SuspensionKind string

const (
	SuspendNone SuspensionKind = ""
	// SuspendRow waits for the row timer or a skip.
	SuspendRow SuspensionKind = "row"
	// SuspendAwaitInput waits for a skip after an AwaitInput row finished.
	SuspendAwaitInput SuspensionKind = "await_input"
	// SuspendSelection waits for one of Options to be selected.
	SuspendSelection SuspensionKind = "selection"
	// SuspendDelay waits for a Delay node to elapse.
	SuspendDelay SuspensionKind = "delay"
	// SuspendReturn waits before a ReturnTo node jumps.
	SuspendReturn SuspensionKind = "return"
	// SuspendSkipFade waits between a skip and the resume it causes.
	SuspendSkipFade SuspensionKind = "skip_fade"
)

// Suspension is the inspectable continuation of a paused session. Timed
// suspensions carry a Deadline; the scheduler resumes them by calling
// Manager.Wake with Token.
type Suspension struct {
	Kind     SuspensionKind `json:"kind"`
	Token    uint64         `json:"token"`
	Node     domain.GUID    `json:"node"`
	Deadline time.Time      `json:"deadline,omitempty"`
	Options  []domain.GUID  `json:"options,omitempty"`
}

// Timed reports whether a scheduler callback is pending for s.
func (s Suspension) Timed() bool {
	return !s.Deadline.IsZero()
}

// suspendFor pauses the session for d and arms the scheduler.
func (m *Manager) suspendFor(kind SuspensionKind, d time.Duration) {
	m.cancelTimer()
	m.token++
	token := m.token
	m.suspension = Suspension{
		Kind:     kind,
		Token:    token,
		Node:     m.dctx.ActiveNode,
		Deadline: m.sched.Now().Add(d),
	}
	m.timer = m.sched.Schedule(d, func() { m.Wake(token) })
}

// suspendOn pauses the session until an external signal arrives.
func (m *Manager) suspendOn(kind SuspensionKind, options []domain.GUID) {
	m.cancelTimer()
	m.token++
	m.suspension = Suspension{
		Kind:    kind,
		Token:   m.token,
		Node:    m.dctx.ActiveNode,
		Options: append([]domain.GUID(nil), options...),
	}
}

func (m *Manager) resume() {
	m.cancelTimer()
	m.suspension = Suspension{}
}

func (m *Manager) cancelTimer() {
	if m.timer != 0 {
		m.sched.Cancel(m.timer)
		m.timer = 0
	}
}
