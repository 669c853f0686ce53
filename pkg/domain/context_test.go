package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContext_Validity(t *testing.T) {
	var nilCtx *Context
	assert.False(t, nilCtx.IsValid())

	c := NewContext("npc", "player", nil)
	assert.False(t, c.IsValid())

	c.SetActiveNode(NewGUID(), nil)
	assert.True(t, c.IsValid())
}

func TestContext_SetActiveParticipant(t *testing.T) {
	c := NewContext("npc", "player", []string{"guard"})
	assert.Equal(t, "npc", c.ActiveParticipant)
	assert.Equal(t, []string{"npc", "player", "guard"}, c.Participants)

	assert.True(t, c.SetActiveParticipant("player"))
	assert.Equal(t, "player", c.ActiveParticipant)

	assert.True(t, c.SetActiveParticipant("guard"))
	assert.False(t, c.SetActiveParticipant("stranger"))
	assert.False(t, c.SetActiveParticipant(""))
	assert.Equal(t, "guard", c.ActiveParticipant)
}

func TestContext_RowIndex(t *testing.T) {
	c := NewContext("npc", "", nil)
	row := &Row{GUID: NewGUID(), Participant: "npc", Data: []RowData{
		{GUID: NewGUID(), Text: "one"},
		{GUID: NewGUID(), Text: "two"},
	}}
	c.SetActiveRow("intro", "greeting", row)

	assert.True(t, c.SetRowDataIndex(1))
	assert.False(t, c.SetRowDataIndex(2))
	assert.Equal(t, 1, c.ActiveRowDataIndex)

	data, ok := c.ActiveRowData()
	require.True(t, ok)
	assert.Equal(t, "two", data.Text)

	shorter := &Row{GUID: NewGUID(), Participant: "npc", Data: []RowData{{GUID: NewGUID(), Text: "only"}}}
	c.SetActiveRow("intro", "short", shorter)
	assert.Equal(t, 0, c.ActiveRowDataIndex, "index is reset when it no longer addresses the row")
}

func TestContext_Traversal(t *testing.T) {
	c := NewContext("npc", "", nil)
	a, b := NewGUID(), NewGUID()
	c.RecordTraversal(a)
	c.RecordTraversal(b)
	c.RecordTraversal(a)

	assert.Equal(t, 2, c.TraversalCount(a))
	assert.Equal(t, 1, c.TraversalCount(b))
	assert.Equal(t, 0, c.TraversalCount(NewGUID()))
	assert.Len(t, c.TraversedPath, 2)
}

func TestContext_MergeKeepsLocalFields(t *testing.T) {
	authority := NewContext("npc", "player", nil)
	authority.SetActiveNode(NewGUID(), []GUID{NewGUID()})
	authority.SetActiveRow("intro", "greeting", &Row{GUID: NewGUID(), Participant: "npc", Data: []RowData{{GUID: NewGUID(), Text: "hi"}}})
	authority.LastUICommand = CommandShowRow

	peer := &Context{Local: map[string]any{"widget": "hud-1"}}
	changed := peer.Merge(authority.Snapshot("s1", 1, StateActive))

	assert.True(t, changed)
	assert.Equal(t, authority.ActiveNode, peer.ActiveNode)
	assert.Equal(t, authority.AllowedChildren, peer.AllowedChildren)
	assert.Equal(t, "greeting", peer.ActiveRowKey)
	assert.Nil(t, peer.ActiveRow, "the peer resolves rows itself")
	assert.Equal(t, CommandShowRow, peer.LastUICommand)
	assert.Equal(t, "hud-1", peer.Local["widget"])

	assert.False(t, peer.Merge(authority.Snapshot("s1", 2, StateActive)), "same content is a no-op")
}

func TestContext_CloneIsIndependent(t *testing.T) {
	c := NewContext("npc", "player", nil)
	c.RecordTraversal(NewGUID())
	clone := c.Clone()
	clone.Participants[0] = "changed"
	clone.TraversedPath[0].Count = 99

	assert.Equal(t, "npc", c.Participants[0])
	assert.Equal(t, 1, c.TraversedPath[0].Count)
}
