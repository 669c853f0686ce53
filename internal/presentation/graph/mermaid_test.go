package graph_test

import (
	"strings"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/presentation/graph"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sample(t *testing.T) *domain.Graph {
	t.Helper()
	b := dsl.New("gate")
	b.Lead("ask").Says("guard", "Who goes there?").Go("friend", "foe")
	b.Answer("friend").Says("hero", "A friend.").OnlyFirstTime().Go("pause")
	b.Answer("foe").Says("hero", `Say "nobody".`).At(1).Go("again")
	b.Delay("pause", 2*time.Second).Go("done")
	b.ReturnTo("again", "ask")
	b.Complete("done")
	g, _, err := b.Build()
	require.NoError(t, err)
	return g
}

func TestGenerateMermaid(t *testing.T) {
	g := sample(t)
	got := graph.GenerateMermaid(g, nil)

	tests := []struct {
		name     string
		contains []string
	}{
		{name: "Start Node Shape", contains: []string{`start(("start"))`}},
		{name: "Answer Node Shape", contains: []string{`friend[/"friend <br/> ◆ only_first_time"/]`}},
		{name: "Delay Node Shape", contains: []string{`pause{{"pause <br/> ⏱️ 2s"}}`}},
		{name: "ReturnTo Node Shape", contains: []string{`again>"again"]`, `again -. "return" .-> ask`}},
		{name: "Terminal Node Shape", contains: []string{`done(["done"])`}},
		{name: "Edges", contains: []string{"start --> ask", "ask --> friend", "ask --> foe"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, want := range tt.contains {
				assert.Contains(t, got, want)
			}
		})
	}
	assert.NotContains(t, got, "classDef")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	g := sample(t)
	ask := g.NodeByName("ask")
	c := domain.NewContext("guard", "hero", nil)
	c.RecordTraversal(g.StartNode)
	c.RecordTraversal(ask.GUID)
	c.SetActiveNode(ask.GUID, ask.Children)

	got := graph.GenerateMermaid(g, graph.OverlayFromContext(c))
	assert.Contains(t, got, "class start visited;")
	assert.Contains(t, got, "class ask visited;")
	assert.Contains(t, got, "class friend option;")
	assert.Contains(t, got, "class foe option;")
	assert.Contains(t, got, "class ask current;")
	assert.Equal(t, 1, strings.Count(got, "class ask visited;"))
}

func TestGenerateMermaid_IDSanitization(t *testing.T) {
	g := domain.NewGraph("ids")
	a := domain.NewNode(domain.KindLead, "path/to/file.md")
	b := domain.NewNode(domain.KindLead, "hyphen-ated")
	require.NoError(t, g.AddNode(a))
	require.NoError(t, g.AddNode(b))
	require.NoError(t, g.Connect(a.GUID, b.GUID, domain.Edge{Label: `say "hi"`}))

	got := graph.GenerateMermaid(g, nil)
	assert.Contains(t, got, `path_to_file_md["path/to/file.md"]`)
	assert.Contains(t, got, `hyphen_ated["hyphen-ated"]`)
	assert.Contains(t, got, `path_to_file_md -- "say 'hi'" --> hyphen_ated`)
}

func TestGenerateMermaid_NilGraph(t *testing.T) {
	assert.Equal(t, "graph TD\n", graph.GenerateMermaid(nil, nil))
}
