package host_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/host"
	"github.com/aretw0/parley/internal/replication"
	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	host      *host.Host
	sched     *memory.ManualScheduler
	transport *memory.Transport
	graph     *domain.Graph
}

func newFixture(t *testing.T, opts ...host.Option) *fixture {
	t.Helper()
	b := dsl.New("gate")
	b.Lead("ask").Says("guard", "Who goes there?").For(time.Second).Go("friend", "foe")
	b.Answer("friend").Says("hero", "A friend.").For(time.Second).Go("done")
	b.Answer("foe").Says("hero", "Nobody.").At(1).Go("done")
	b.Complete("done")
	g, rows := b.MustBuild()

	f := &fixture{
		sched:     memory.NewManualScheduler(time.Time{}),
		transport: memory.NewTransport(16),
		graph:     g,
	}
	loader := memory.NewLoader(g)
	factory := func(string) *runtime.Manager {
		return runtime.New(rows, f.sched, runtime.WithLoader(loader))
	}
	opts = append([]host.Option{host.WithAuthorityOptions(replication.WithDebounce())}, opts...)
	f.host = host.New(factory, f.transport, loader, rows, opts...)
	return f
}

func (f *fixture) start(t *testing.T, id string) domain.Snapshot {
	t.Helper()
	snap, err := f.host.Handle(context.Background(), ports.Request{
		SessionID:    id,
		Kind:         ports.RequestStart,
		Graph:        "gate",
		Initiator:    "hero",
		Participants: []string{"guard"},
	})
	require.NoError(t, err)
	return snap
}

func TestHost_SessionLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	snap := f.start(t, "s1")
	assert.Equal(t, domain.StateActive, snap.State)
	assert.Equal(t, f.graph.NodeByName("ask").GUID, snap.ActiveNode)
	assert.Equal(t, []string{"s1"}, f.host.Sessions())

	v, err := f.host.View(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "gate", v.Graph)
	assert.Equal(t, "guard", v.Speaker)
	assert.Equal(t, "Who goes there?", v.Text)
	assert.Equal(t, runtime.SuspendRow, v.Suspension.Kind)
	assert.Empty(t, v.Options)

	f.sched.Advance(time.Second)
	v, err = f.host.View(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, v.Options, 2)
	assert.Equal(t, host.OptionView{Index: 1, Node: f.graph.NodeByName("friend").GUID, Name: "friend", Text: "A friend."}, v.Options[0])
	assert.Equal(t, "Nobody.", v.Options[1].Text)

	node, err := f.host.Option("s1", 1)
	require.NoError(t, err)
	snap, err = f.host.Handle(ctx, ports.Request{SessionID: "s1", Kind: ports.RequestSelect, Node: node})
	require.NoError(t, err)
	assert.Equal(t, node, snap.ActiveNode)

	_, err = f.host.Option("s1", 3)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)

	f.sched.Advance(time.Second)
	snap, err = f.host.Snapshot("s1")
	require.NoError(t, err)
	assert.True(t, snap.Closed())
	assert.Equal(t, domain.StateEnabled, snap.State)
}

func TestHost_UnknownSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.host.Handle(ctx, ports.Request{SessionID: "ghost", Kind: ports.RequestSkip})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = f.host.Handle(ctx, ports.Request{Kind: ports.RequestStart})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	_, err = f.host.View(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.ErrorIs(t, f.host.Forget(ctx, "ghost"), domain.ErrSessionNotFound)
}

func TestHost_Participants(t *testing.T) {
	guard := memory.NewParticipant("guard", memory.WithTag("city"))
	f := newFixture(t, host.WithParticipants(guard))

	p, ok := f.host.Participant("guard")
	require.True(t, ok)
	assert.Same(t, guard, p)

	hero, ok := f.host.Participant("hero")
	require.True(t, ok)
	again, _ := f.host.Participant("hero")
	assert.Same(t, hero, again, "created participants are kept")

	_, ok = f.host.Participant("")
	assert.False(t, ok)

	f.start(t, "s1")
	assert.Equal(t, domain.StateActive, guard.State())
}

func TestHost_RunRoutesTransportRequests(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	snaps, err := f.transport.Snapshots(ctx, "s2")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- f.host.Run(ctx) }()

	require.NoError(t, f.transport.SendRequest(ctx, ports.Request{
		SessionID: "s2", Kind: ports.RequestStart, Graph: "gate", Initiator: "hero", Participants: []string{"guard"},
	}))

	select {
	case snap := <-snaps:
		assert.Equal(t, "s2", snap.SessionID)
		assert.Equal(t, f.graph.NodeByName("ask").GUID, snap.ActiveNode)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot mirrored")
	}

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestHost_Shutdown(t *testing.T) {
	f := newFixture(t)
	f.start(t, "a")
	f.start(t, "b")

	f.host.Shutdown(context.Background())
	assert.Empty(t, f.host.Sessions())
}
