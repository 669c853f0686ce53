package dsl_test

import (
	"context"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/validator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gate() *dsl.Builder {
	b := dsl.New("gate")
	b.Lead("question").
		Says("guard", "Who goes there?").For(2 * time.Second).
		Says("guard", "Speak up!").AwaitInput().
		Go("friend", "nobody")
	b.Answer("friend").Says("hero", "A friend.").Go("done")
	b.Answer("nobody").Says("hero", "Nobody.").At(1).Go("again")
	b.ReturnTo("again", "question")
	b.Complete("done")
	return b
}

func TestBuilder_Gate(t *testing.T) {
	g, rows, err := gate().Build()
	require.NoError(t, err)
	require.NoError(t, validator.New(validator.WithRows(rows)).Validate(context.Background(), g))

	question := g.NodeByName("question")
	require.NotNil(t, question)
	assert.Equal(t, question, g.FirstNode())
	assert.Equal(t, domain.KindLead, question.Kind)
	assert.Equal(t, "gate", question.RowTable)
	assert.Equal(t, "question", question.RowKey)

	friend, nobody := g.NodeByName("friend"), g.NodeByName("nobody")
	assert.Equal(t, []domain.GUID{friend.GUID, nobody.GUID}, question.Children)
	assert.Less(t, friend.ExecutionOrder, nobody.ExecutionOrder)
	assert.Equal(t, question.GUID, g.NodeByName("again").ReturnTarget)

	row, err := rows.Row(context.Background(), "gate", "question")
	require.NoError(t, err)
	assert.Equal(t, "guard", row.Participant)
	require.Len(t, row.Data, 2)
	assert.Equal(t, 2*time.Second, row.Data[0].RowDuration(0))
	assert.Equal(t, domain.ExecutionAwaitInput, row.Data[1].Execution)
	assert.NotEqual(t, row.Data[0].GUID, row.Data[1].GUID)
}

func TestBuilder_StableGUIDs(t *testing.T) {
	g1, _, err := gate().Build()
	require.NoError(t, err)
	g2, _, err := gate().Build()
	require.NoError(t, err)
	assert.Equal(t, g1.NodeByName("friend").GUID, g2.NodeByName("friend").GUID)

	ob := dsl.New("other")
	ob.Lead("friend").Says("x", "y")
	other, _, err := ob.Build()
	require.NoError(t, err)
	assert.NotEqual(t, g1.NodeByName("friend").GUID, other.NodeByName("friend").GUID, "GUIDs are scoped by graph")
}

func TestBuilder_UnknownReferences(t *testing.T) {
	b := dsl.New("broken")
	b.Lead("a").Says("npc", "Hi.").Go("nowhere")
	b.ReturnTo("back", "missing")

	_, _, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	assert.Len(t, domain.Errors(err), 2)

	_, _, err = dsl.New("empty").Build()
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
}

func TestBuilder_Decorators(t *testing.T) {
	b := dsl.New("decorated").Decorate("swap_participants", nil)
	b.Lead("a").Says("npc", "Hi.").Go("b")
	b.Lead("b").Says("npc", "Again.").OnlyFirstTime().OwnDecoratorsOnly().Manual()

	g, _, err := b.Build()
	require.NoError(t, err)
	require.Len(t, g.Decorators, 1)
	n := g.NodeByName("b")
	assert.Equal(t, []domain.DecoratorSpec{{Type: "only_first_time"}}, n.Decorators)
	assert.False(t, n.InheritGraphDecorators)
	assert.False(t, n.AutoStarts)
}
