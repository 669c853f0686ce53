package decorator_test

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/logging"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/decorator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHost struct {
	ctx          *domain.Context
	participants map[string]*memory.Participant
	rows         *memory.Rows
	sched        *memory.ManualScheduler
	rng          *rand.Rand
}

func newFakeHost() *fakeHost {
	npc := memory.NewParticipant("npc")
	player := memory.NewParticipant("player")
	return &fakeHost{
		ctx: domain.NewContext("npc", "player", nil),
		participants: map[string]*memory.Participant{
			"npc":    npc,
			"player": player,
		},
		rows:  memory.NewRows(),
		sched: memory.NewManualScheduler(time.Time{}),
		rng:   rand.New(rand.NewPCG(1, 2)),
	}
}

func (h *fakeHost) DialogueContext() *domain.Context { return h.ctx }
func (h *fakeHost) Rows() ports.RowResolver          { return h.rows }
func (h *fakeHost) Scheduler() ports.Scheduler       { return h.sched }
func (h *fakeHost) Rand() *rand.Rand                 { return h.rng }
func (h *fakeHost) Logger() *slog.Logger             { return logging.NewNop() }

func (h *fakeHost) Participant(id string) (ports.Participant, bool) {
	p, ok := h.participants[id]
	return p, ok
}

func (h *fakeHost) Participants() []ports.Participant {
	return []ports.Participant{h.participants["npc"], h.participants["player"]}
}

func build(t *testing.T, spec domain.DecoratorSpec, h decorator.Host, owner decorator.Owner) decorator.Decorator {
	t.Helper()
	d, err := decorator.DefaultRegistry().Build(spec)
	require.NoError(t, err)
	d.Initialize(h, owner)
	return d
}

func TestRegistry_Build(t *testing.T) {
	reg := decorator.DefaultRegistry()

	d, err := reg.Build(domain.DecoratorSpec{
		Type:   decorator.TypeSendCommand,
		Params: map[string]any{"command": "open_door", "delay": "2s", "target": "*"},
	})
	require.NoError(t, err)
	cmd := d.(*decorator.SendCommand)
	assert.Equal(t, "open_door", cmd.Command)
	assert.Equal(t, 2*time.Second, cmd.Delay)
	assert.True(t, decorator.IsStackable(d))

	_, err = reg.Build(domain.DecoratorSpec{Type: "teleport"})
	assert.ErrorContains(t, err, "unknown decorator type")

	_, err = reg.Build(domain.DecoratorSpec{
		Type:   decorator.TypeOverrideDialogue,
		Params: map[string]any{"tabel": "typo"},
	})
	assert.Error(t, err, "unknown params are rejected")

	assert.Contains(t, reg.Types(), decorator.TypeOnlyFirstTime)
}

func TestOnlyFirstTime(t *testing.T) {
	g := domain.NewGraph("g")
	first := domain.NewNode(domain.KindLead, "first")
	second := domain.NewNode(domain.KindLead, "second")
	require.NoError(t, g.AddNode(first))
	require.NoError(t, g.AddNode(second))
	require.NoError(t, g.Connect(g.StartNode, first.GUID, domain.Edge{}))
	require.NoError(t, g.Connect(first.GUID, second.GUID, domain.Edge{}))

	h := newFakeHost()
	d := build(t, domain.DecoratorSpec{Type: decorator.TypeOnlyFirstTime}, h, decorator.Owner{Graph: g, Node: second})

	ctx := context.Background()
	assert.True(t, d.Evaluate(ctx, second))
	h.ctx.RecordTraversal(second.GUID)
	assert.False(t, d.Evaluate(ctx, second))

	assert.Empty(t, d.Validate(decorator.Owner{Graph: g, Node: second}))
	assert.Len(t, d.Validate(decorator.Owner{Graph: g, Node: first}), 1, "first node after start")
	assert.Len(t, d.Validate(decorator.Owner{Graph: g, Node: g.Start()}), 1)
}

func TestOverrideDialogue(t *testing.T) {
	h := newFakeHost()
	node := domain.NewNode(domain.KindLead, "n")
	h.ctx.ActiveRowTable, h.ctx.ActiveRowKey = "intro", "greeting"

	d := build(t, domain.DecoratorSpec{
		Type:   decorator.TypeOverrideOnlyFirstTime,
		Params: map[string]any{"table": "intro", "key": "first_meeting"},
	}, h, decorator.Owner{Node: node})
	d.Execute(context.Background(), node)
	assert.Equal(t, "first_meeting", h.ctx.ActiveRowKey)

	h.ctx.ActiveRowKey = "greeting"
	h.ctx.RecordTraversal(node.GUID)
	d.Execute(context.Background(), node)
	assert.Equal(t, "greeting", h.ctx.ActiveRowKey, "only the first visit is redirected")

	bad, err := decorator.DefaultRegistry().Build(domain.DecoratorSpec{Type: decorator.TypeOverrideDialogue})
	require.NoError(t, err)
	assert.Len(t, bad.Validate(decorator.Owner{Node: node}), 2)
}

func TestSwapParticipants(t *testing.T) {
	h := newFakeHost()
	d := build(t, domain.DecoratorSpec{Type: decorator.TypeSwapParticipants}, h, decorator.Owner{})

	d.Execute(context.Background(), nil)
	assert.Equal(t, "player", h.ctx.ActiveParticipant)
	d.Execute(context.Background(), nil)
	assert.Equal(t, "npc", h.ctx.ActiveParticipant)
}

func TestSelectRandomRow_StaysInClampedRange(t *testing.T) {
	h := newFakeHost()
	h.rows.Put("intro", "barks", &domain.Row{
		GUID:        domain.NewGUID(),
		Participant: "npc",
		Data: []domain.RowData{
			{GUID: domain.NewGUID(), Text: "a"},
			{GUID: domain.NewGUID(), Text: "b"},
			{GUID: domain.NewGUID(), Text: "c"},
		},
	})
	h.ctx.ActiveRowTable, h.ctx.ActiveRowKey = "intro", "barks"

	d := build(t, domain.DecoratorSpec{
		Type:   decorator.TypeSelectRandomRow,
		Params: map[string]any{"min": -4, "max": 10},
	}, h, decorator.Owner{})

	seen := map[int]bool{}
	for i := 0; i < 100; i++ {
		d.Execute(context.Background(), nil)
		idx := h.ctx.ActiveRowDataIndex
		require.GreaterOrEqual(t, idx, 0)
		require.Less(t, idx, 3)
		seen[idx] = true
	}
	assert.Len(t, seen, 3)
}

func TestSelectRandomRow_Validate(t *testing.T) {
	g := domain.NewGraph("barks")
	lead := domain.NewNode(domain.KindLead, "barks")
	d := &decorator.SelectRandomRow{Max: -1}

	assert.Empty(t, d.Validate(decorator.Owner{Graph: g, Node: lead}))
	assert.Equal(t, []string{"SelectRandomRow is not allowed in Graph Decorators"}, d.Validate(decorator.Owner{Graph: g}))
	assert.Len(t, d.Validate(decorator.Owner{Graph: g, Node: g.Start()}), 1, "start carries no rows")
}

func TestSaveNodeAsStart(t *testing.T) {
	h := newFakeHost()
	node := domain.NewNode(domain.KindLead, "checkpoint")
	d := build(t, domain.DecoratorSpec{Type: decorator.TypeSaveNodeAsStart}, h, decorator.Owner{Node: node})

	d.Execute(context.Background(), node)
	assert.Equal(t, node.GUID, h.participants["npc"].SavedStartingNode())
	assert.Equal(t, node.GUID, h.participants["player"].SavedStartingNode())
}

func TestSendCommand(t *testing.T) {
	h := newFakeHost()
	immediate := build(t, domain.DecoratorSpec{
		Type:   decorator.TypeSendCommand,
		Params: map[string]any{"command": "wave", "payload": map[string]any{"hand": "left"}},
	}, h, decorator.Owner{})
	delayed := build(t, domain.DecoratorSpec{
		Type:   decorator.TypeSendCommand,
		Params: map[string]any{"command": "leave", "delay": "1s", "target": "player"},
	}, h, decorator.Owner{})

	ctx := context.Background()
	immediate.Execute(ctx, nil)
	delayed.Execute(ctx, nil)

	require.Len(t, h.participants["npc"].Commands(), 1)
	assert.Equal(t, "left", h.participants["npc"].Commands()[0].Payload["hand"])
	assert.Empty(t, h.participants["player"].Commands())

	h.sched.Advance(time.Second)
	require.Len(t, h.participants["player"].Commands(), 1)
	assert.Equal(t, "leave", h.participants["player"].Commands()[0].Name)

	delayed.Execute(ctx, nil)
	delayed.Cleanup()
	h.sched.Advance(time.Second)
	assert.Len(t, h.participants["player"].Commands(), 1, "cleanup cancels pending sends")

	empty, err := decorator.DefaultRegistry().Build(domain.DecoratorSpec{Type: decorator.TypeSendCommand})
	require.NoError(t, err)
	assert.NotEmpty(t, empty.Validate(decorator.Owner{}))
}

func TestOverrideParticipants(t *testing.T) {
	h := newFakeHost()
	d := build(t, domain.DecoratorSpec{
		Type:   decorator.TypeOverrideParticipants,
		Params: map[string]any{"participant": "player"},
	}, h, decorator.Owner{})
	d.Execute(context.Background(), nil)
	assert.Equal(t, "player", h.ctx.ActiveParticipant)

	stranger := build(t, domain.DecoratorSpec{
		Type:   decorator.TypeOverrideParticipants,
		Params: map[string]any{"participant": "stranger"},
	}, h, decorator.Owner{})
	stranger.Execute(context.Background(), nil)
	assert.Equal(t, "player", h.ctx.ActiveParticipant, "unknown participants are ignored")
}
