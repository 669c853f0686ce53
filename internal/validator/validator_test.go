package validator_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validGraph is Start -> greet -> {yes, no}; yes -> done; no -> back (returns to greet).
func validGraph(t *testing.T) *domain.Graph {
	t.Helper()
	g := domain.NewGraph("valid")
	add := func(kind domain.NodeKind, name string) *domain.Node {
		n := domain.NewNode(kind, name)
		if n.CarriesContent() {
			n.RowTable, n.RowKey = "lines", name
		}
		require.NoError(t, g.AddNode(n))
		return n
	}
	link := func(p, c *domain.Node) {
		require.NoError(t, g.Connect(p.GUID, c.GUID, domain.Edge{}))
	}
	greet := add(domain.KindLead, "greet")
	yes := add(domain.KindAnswer, "yes")
	no := add(domain.KindAnswer, "no")
	done := add(domain.KindComplete, "done")
	back := add(domain.KindReturnTo, "back")
	back.ReturnTarget = greet.GUID
	link(g.Start(), greet)
	link(greet, yes)
	link(greet, no)
	link(yes, done)
	link(no, back)
	return g
}

func findings(t *testing.T, err error) []string {
	t.Helper()
	if err == nil {
		return nil
	}
	errs := domain.Errors(err)
	require.NotEmpty(t, errs, "expected an aggregate error, got %v", err)
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Error()
	}
	return out
}

func TestValidate_ValidGraph(t *testing.T) {
	assert.NoError(t, validator.ValidateGraph(validGraph(t)))
}

func TestValidate_AllowedInputs(t *testing.T) {
	g := validGraph(t)
	pause := domain.NewNode(domain.KindDelay, "pause")
	pause.Delay = time.Second
	require.NoError(t, g.AddNode(pause))
	require.NoError(t, g.Connect(g.NodeByName("greet").GUID, pause.GUID, domain.Edge{}))
	require.NoError(t, g.Connect(pause.GUID, g.NodeByName("yes").GUID, domain.Edge{}))
	assert.NoError(t, validator.ValidateGraph(g), "a delay may lead into an answer")

	direct := domain.NewGraph("direct")
	reply := domain.NewNode(domain.KindAnswer, "reply")
	reply.RowTable, reply.RowKey = "lines", "reply"
	require.NoError(t, direct.AddNode(reply))
	require.NoError(t, direct.Connect(direct.Start().GUID, reply.GUID, domain.Edge{}))
	got := findings(t, validator.ValidateGraph(direct))
	assert.Condition(t, func() bool {
		for _, f := range got {
			if strings.HasPrefix(f, "reply: does not accept input from") {
				return true
			}
		}
		return false
	}, "findings: %v", got)
}

func TestValidate_DuplicateDecorator(t *testing.T) {
	g := validGraph(t)
	yes := g.NodeByName("yes")
	yes.Decorators = []domain.DecoratorSpec{{Type: "only_first_time"}, {Type: "only_first_time"}}

	got := findings(t, validator.ValidateGraph(g))
	require.Len(t, got, 1)
	assert.Equal(t, "yes: has Node Decorator only_first_time 2x times", got[0])
}

func TestValidate_StackableDecoratorsMayRepeat(t *testing.T) {
	g := validGraph(t)
	g.NodeByName("yes").Decorators = []domain.DecoratorSpec{
		{Type: "send_command", Params: map[string]any{"command": "nod"}},
		{Type: "send_command", Params: map[string]any{"command": "smile"}},
	}
	assert.NoError(t, validator.ValidateGraph(g))
}

func TestValidate_Findings(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(g *domain.Graph)
		want   []string
	}{
		{
			name: "isolated node",
			mutate: func(g *domain.Graph) {
				n := domain.NewNode(domain.KindDelay, "orphan")
				_ = g.AddNode(n)
			},
			want: []string{"orphan: has no connections", "orphan: requires inputs"},
		},
		{
			name: "answer after answer",
			mutate: func(g *domain.Graph) {
				yes, done := g.NodeByName("yes"), g.NodeByName("done")
				_ = g.RemoveNode(done.GUID)
				extra := domain.NewNode(domain.KindAnswer, "extra")
				extra.RowTable, extra.RowKey = "lines", "extra"
				_ = g.AddNode(extra)
				_ = g.Connect(yes.GUID, extra.GUID, domain.Edge{})
			},
			want: []string{"extra: does not accept input from answer node yes"},
		},
		{
			name: "invalid decorator",
			mutate: func(g *domain.Graph) {
				g.NodeByName("no").Decorators = []domain.DecoratorSpec{{Type: "teleport"}}
			},
			want: []string{"no: invalid decorator at index 0"},
		},
		{
			name: "decorator refuses its owner",
			mutate: func(g *domain.Graph) {
				g.NodeByName("greet").Decorators = []domain.DecoratorSpec{{Type: "only_first_time"}}
			},
			want: []string{"greet: decorator only_first_time at index 0"},
		},
		{
			name: "return target missing",
			mutate: func(g *domain.Graph) {
				g.NodeByName("back").ReturnTarget = domain.NilGUID
			},
			want: []string{"back: has no return target"},
		},
		{
			name: "return with a sibling",
			mutate: func(g *domain.Graph) {
				no, done := g.NodeByName("no"), g.NodeByName("done")
				_ = g.Connect(no.GUID, done.GUID, domain.Edge{})
			},
			want: []string{"back: must be the only child of no", "no: allows at most 1 children, has 2"},
		},
		{
			name: "zero delay",
			mutate: func(g *domain.Graph) {
				yes, done := g.NodeByName("yes"), g.NodeByName("done")
				_ = g.RemoveNode(done.GUID)
				d := domain.NewNode(domain.KindDelay, "pause")
				d.Delay = 0
				_ = g.AddNode(d)
				_ = g.Connect(yes.GUID, d.GUID, domain.Edge{})
			},
			want: []string{"pause: delay must be greater than zero"},
		},
		{
			name: "terminal with outputs",
			mutate: func(g *domain.Graph) {
				done, greet := g.NodeByName("done"), g.NodeByName("greet")
				_ = g.Connect(done.GUID, greet.GUID, domain.Edge{})
			},
			want: []string{"done: does not allow outputs", "is part of a structural cycle"},
		},
		{
			name: "start without child",
			mutate: func(g *domain.Graph) {
				start := g.Start()
				_ = g.RemoveNode(start.Children[0])
			},
			want: []string{"valid: Start node must have exactly one child, has 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := validGraph(t)
			tt.mutate(g)
			joined := strings.Join(findings(t, validator.ValidateGraph(g)), "\n")
			for _, want := range tt.want {
				assert.Contains(t, joined, want)
			}
		})
	}
}

func TestValidate_Rows(t *testing.T) {
	g := validGraph(t)
	rows := memory.NewRows()
	entry := func(text string) domain.RowData {
		return domain.RowData{GUID: domain.NewGUID(), Text: text, Duration: time.Second}
	}
	for _, key := range []string{"greet", "yes"} {
		rows.Put("lines", key, &domain.Row{GUID: domain.NewGUID(), Participant: "npc", Data: []domain.RowData{entry(key)}})
	}
	rows.Put("lines", "no", &domain.Row{GUID: domain.NewGUID(), Participant: "npc", Data: []domain.RowData{entry("")}})

	got := findings(t, validator.New(validator.WithRows(rows)).Validate(context.Background(), g))
	require.Len(t, got, 1)
	assert.Equal(t, "no: row lines/no entry 0 has no text", got[0])

	rows.Put("lines", "no", &domain.Row{GUID: domain.NewGUID(), Participant: "npc", Data: []domain.RowData{entry("no")}})
	assert.NoError(t, validator.New(validator.WithRows(rows)).Validate(context.Background(), g))
}
