package runtime_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/require"
)

// recorder collects every lifecycle event in emission order.
type recorder struct {
	mu     sync.Mutex
	events []*domain.Event
}

func (r *recorder) hooks() domain.LifecycleHooks {
	return domain.Listen(func(_ context.Context, e *domain.Event) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.events = append(r.events, e)
	})
}

func (r *recorder) types() []domain.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recorder) count(t domain.EventType) int {
	n := 0
	for _, got := range r.types() {
		if got == t {
			n++
		}
	}
	return n
}

func (r *recorder) last(t domain.EventType) *domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == t {
			return r.events[i]
		}
	}
	return nil
}

// fixture wires a manager to in-memory collaborators.
type fixture struct {
	t      *testing.T
	graph  *domain.Graph
	rows   *memory.Rows
	sched  *memory.ManualScheduler
	rec    *recorder
	ui     *memory.UI
	npc    *memory.Participant
	player *memory.Participant
	mgr    *runtime.Manager
}

func newFixture(t *testing.T, opts ...runtime.Option) *fixture {
	t.Helper()
	f := &fixture{
		t:      t,
		graph:  domain.NewGraph("test"),
		rows:   memory.NewRows(),
		sched:  memory.NewManualScheduler(time.Time{}),
		rec:    &recorder{},
		ui:     memory.NewUI("hud"),
		npc:    memory.NewParticipant("npc"),
		player: memory.NewParticipant("player"),
	}
	opts = append([]runtime.Option{runtime.WithHooks(f.rec.hooks())}, opts...)
	f.mgr = runtime.New(f.rows, f.sched, opts...)
	f.mgr.RegisterWidget(context.Background(), f.ui)
	return f
}

// lead adds a content node with a single-entry row.
func (f *fixture) lead(kind domain.NodeKind, name string, data ...domain.RowData) *domain.Node {
	f.t.Helper()
	n := domain.NewNode(kind, name)
	n.RowTable, n.RowKey = "lines", name
	require.NoError(f.t, f.graph.AddNode(n))
	for i := range data {
		if data[i].GUID == domain.NilGUID {
			data[i].GUID = domain.NewGUID()
		}
	}
	f.rows.Put("lines", name, &domain.Row{GUID: domain.NewGUID(), Participant: "npc", Data: data})
	return n
}

func (f *fixture) node(kind domain.NodeKind, name string) *domain.Node {
	f.t.Helper()
	n := domain.NewNode(kind, name)
	require.NoError(f.t, f.graph.AddNode(n))
	return n
}

func (f *fixture) connect(parent, child *domain.Node) {
	f.t.Helper()
	require.NoError(f.t, f.graph.Connect(parent.GUID, child.GUID, domain.Edge{}))
}

func (f *fixture) start() error {
	domain.AssignExecutionOrder(f.graph)
	return f.mgr.Start(context.Background(), runtime.StartRequest{
		SessionID: "session-1",
		Graph:     f.graph,
		Initiator: f.player,
		Main:      f.npc,
	})
}

func line(text string, d time.Duration, mode domain.ExecutionMode) domain.RowData {
	return domain.RowData{Text: text, Duration: d, Execution: mode}
}
