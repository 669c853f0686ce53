package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearGraph(t *testing.T) (*Graph, *Node, *Node) {
	t.Helper()
	g := NewGraph("linear")
	lead := NewNode(KindLead, "greeting")
	lead.RowTable, lead.RowKey = "intro", "greeting"
	done := NewNode(KindComplete, "done")
	require.NoError(t, g.AddNode(lead))
	require.NoError(t, g.AddNode(done))
	require.NoError(t, g.Connect(g.StartNode, lead.GUID, Edge{}))
	require.NoError(t, g.Connect(lead.GUID, done.GUID, Edge{}))
	return g, lead, done
}

func TestGraph_Structure(t *testing.T) {
	g, lead, done := linearGraph(t)

	assert.Len(t, g.AllNodes(), 3)
	assert.Equal(t, KindStart, g.Start().Kind)
	assert.Equal(t, lead, g.FirstNode())
	assert.Equal(t, []*Node{done}, g.Children(lead))
	assert.Equal(t, []GUID{lead.GUID}, done.Parents)
	assert.True(t, g.CanStartDialogueGraph())
	assert.Equal(t, done, g.NodeByName("done"))
}

func TestGraph_Invariants(t *testing.T) {
	g, lead, _ := linearGraph(t)

	assert.ErrorIs(t, g.AddNode(NewNode(KindStart, "other-start")), ErrStartExists)
	assert.ErrorIs(t, g.AddNode(NewNode(KindLead, "greeting")), ErrDuplicateGUID)
	assert.ErrorIs(t, g.RemoveNode(g.StartNode), ErrStartNotRemovable)

	require.NoError(t, g.RemoveNode(lead.GUID))
	assert.Empty(t, g.Start().Children)
	assert.False(t, g.CanStartDialogueGraph())
	assert.ErrorIs(t, g.RemoveNode(lead.GUID), ErrNodeNotFound)
}

func TestNode_CanStart(t *testing.T) {
	lead := NewNode(KindLead, "lead")
	assert.False(t, lead.CanStart(), "content nodes need a row reference")
	lead.RowTable, lead.RowKey = "t", "k"
	assert.True(t, lead.CanStart())

	answer := NewNode(KindAnswer, "answer")
	answer.RowTable, answer.RowKey = "t", "k"
	answer.Children = []GUID{NewGUID(), NewGUID()}
	assert.False(t, answer.CanStart(), "answers are capped at one child")

	ret := NewNode(KindReturnTo, "back")
	assert.False(t, ret.CanStart())
	ret.ReturnTarget = lead.GUID
	assert.True(t, ret.CanStart())

	assert.Equal(t, DefaultDelayDuration, NewNode(KindDelay, "pause").Delay)
}

func TestGUIDFromName_Stable(t *testing.T) {
	assert.Equal(t, GUIDFromName("greeting"), GUIDFromName("greeting"))
	assert.NotEqual(t, GUIDFromName("greeting"), GUIDFromName("farewell"))
	assert.Equal(t, NilGUID, GUIDFromName(" "))

	explicit := NewGUID()
	assert.Equal(t, explicit, GUIDFromName(explicit.String()))
}

func TestAssignExecutionOrder(t *testing.T) {
	g := NewGraph("branching")
	lead := NewNode(KindLead, "lead")
	right := NewNode(KindAnswer, "right")
	right.Position = 200
	left := NewNode(KindAnswer, "left")
	left.Position = -50
	orphan := NewNode(KindLead, "orphan")
	for _, n := range []*Node{lead, right, left, orphan} {
		require.NoError(t, g.AddNode(n))
	}
	require.NoError(t, g.Connect(g.StartNode, lead.GUID, Edge{}))
	require.NoError(t, g.Connect(lead.GUID, right.GUID, Edge{}))
	require.NoError(t, g.Connect(lead.GUID, left.GUID, Edge{}))

	AssignExecutionOrder(g)

	assert.Equal(t, 0, g.Start().ExecutionOrder)
	assert.Equal(t, 1, lead.ExecutionOrder)
	assert.Less(t, left.ExecutionOrder, right.ExecutionOrder, "ties in a layer break by position")
	assert.Equal(t, 4, orphan.ExecutionOrder, "unreachable nodes come last")

	candidates := []*Node{right, orphan, left}
	SortByExecutionOrder(candidates)
	assert.Equal(t, []*Node{left, right, orphan}, candidates)
}
