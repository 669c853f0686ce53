package runtime_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aretw0/parley/internal/runtime"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_LinearDialogueClosesItself(t *testing.T) {
	f := newFixture(t)
	a := f.lead(domain.KindLead, "a", line("Hello there.", 2*time.Second, domain.ExecutionAutomatic))
	done := f.node(domain.KindComplete, "done")
	f.connect(f.graph.Start(), a)
	f.connect(a, done)

	require.NoError(t, f.start())
	assert.Zero(t, f.rec.count(domain.EventDialogueFailed), "the context is bound to the first node on start")
	assert.Equal(t, domain.StateActive, f.mgr.State())
	require.NotNil(t, f.mgr.Context())
	assert.Equal(t, a.GUID, f.mgr.Context().ActiveNode)
	assert.Equal(t, runtime.SuspendRow, f.mgr.Suspension().Kind)
	assert.Equal(t, domain.StateActive, f.npc.State())

	f.sched.Advance(1999 * time.Millisecond)
	assert.Equal(t, domain.StateActive, f.mgr.State(), "row is still playing")

	f.sched.Advance(time.Millisecond)
	assert.Equal(t, domain.StateEnabled, f.mgr.State())
	assert.Equal(t, f.mgr.DefaultState(), f.mgr.State())
	assert.Nil(t, f.mgr.Context())
	assert.Equal(t, domain.StateEnabled, f.npc.State(), "participants are restored to their default")

	path := f.npc.TraversedPath()
	require.Len(t, path, 2)
	assert.Equal(t, a.GUID, path[0].Node)
	assert.Equal(t, done.GUID, path[1].Node)

	assert.Equal(t, []domain.UICommand{
		domain.CommandCreateWidget,
		domain.CommandShowRow,
		domain.CommandShowSkip,
		domain.CommandHideSkip,
		domain.CommandHideRow,
		domain.CommandCloseWidget,
	}, f.ui.Commands())

	assert.Equal(t, 1, f.rec.count(domain.EventDialogueStarted))
	assert.Equal(t, 1, f.rec.count(domain.EventRowStarted))
	assert.Equal(t, 1, f.rec.count(domain.EventRowFinished))
	assert.Equal(t, 1, f.rec.count(domain.EventDialogueClosed))
	assert.Zero(t, f.rec.count(domain.EventDialogueFailed))
	assert.Nil(t, f.rec.last(domain.EventDialogueClosed).Context)
	assert.Equal(t, 2*time.Second, f.rec.last(domain.EventRowStarted).Duration)
}

func TestManager_AwaitInputWaitsForSkip(t *testing.T) {
	f := newFixture(t)
	a := f.lead(domain.KindLead, "a", line("Press a key.", 2*time.Second, domain.ExecutionAwaitInput))
	done := f.node(domain.KindComplete, "done")
	f.connect(f.graph.Start(), a)
	f.connect(a, done)
	require.NoError(t, f.start())

	f.sched.Advance(2 * time.Second)
	assert.Equal(t, 1, f.rec.count(domain.EventRowFinished), "row finished fires when the timer runs out")
	assert.Zero(t, f.rec.count(domain.EventNodeFinished))
	assert.Equal(t, runtime.SuspendAwaitInput, f.mgr.Suspension().Kind)

	f.sched.Advance(time.Minute)
	assert.Equal(t, domain.StateActive, f.mgr.State(), "nothing advances without a skip")

	require.NoError(t, f.mgr.Skip(context.Background()))
	assert.Equal(t, 1, f.rec.count(domain.EventRowFinished), "the skip does not finish the row twice")
	assert.Equal(t, domain.StateEnabled, f.mgr.State())
}

func TestManager_OptionsAndSelection(t *testing.T) {
	f := newFixture(t)
	question := f.lead(domain.KindLead, "question", line("Who goes there?", time.Second, domain.ExecutionAutomatic))
	x := f.lead(domain.KindAnswer, "x", line("A friend.", time.Second, domain.ExecutionAutomatic))
	y := f.lead(domain.KindAnswer, "y", line("None of your business.", time.Second, domain.ExecutionAutomatic))
	x.Position, y.Position = 0, 100
	f.connect(f.graph.Start(), question)
	f.connect(question, x)
	f.connect(question, y)
	require.NoError(t, f.start())

	f.sched.Advance(time.Second)
	s := f.mgr.Suspension()
	assert.Equal(t, runtime.SuspendSelection, s.Kind)
	assert.Equal(t, []domain.GUID{x.GUID, y.GUID}, s.Options)
	assert.Equal(t, []domain.GUID{x.GUID, y.GUID}, f.mgr.Context().AllowedChildren)
	assert.Equal(t, domain.CommandAddOptions, f.ui.Commands()[len(f.ui.Commands())-1])

	f.sched.Advance(time.Hour)
	assert.Equal(t, runtime.SuspendSelection, f.mgr.Suspension().Kind, "selection has no timeout")

	f.ui.Reset()
	require.NoError(t, f.mgr.SelectNode(context.Background(), x.GUID))
	assert.Equal(t, x.GUID, f.mgr.Context().ActiveNode)
	cmds := f.ui.Commands()
	require.GreaterOrEqual(t, len(cmds), 2)
	assert.Equal(t, domain.CommandRemoveOptions, cmds[0])
	assert.Equal(t, domain.CommandShowRow, cmds[1])
	assert.Equal(t, x.GUID, f.rec.last(domain.EventNodeSelected).Node)
}

func TestManager_SelectUnknownOptionFails(t *testing.T) {
	f := newFixture(t)
	question := f.lead(domain.KindLead, "question", line("Well?", time.Second, domain.ExecutionAutomatic))
	x := f.lead(domain.KindAnswer, "x", line("Yes.", time.Second, domain.ExecutionAutomatic))
	y := f.lead(domain.KindAnswer, "y", line("No.", time.Second, domain.ExecutionAutomatic))
	f.connect(f.graph.Start(), question)
	f.connect(question, x)
	f.connect(question, y)
	require.NoError(t, f.start())
	f.sched.Advance(time.Second)

	err := f.mgr.SelectNode(context.Background(), domain.NewGUID())
	assert.ErrorIs(t, err, domain.ErrNodeNotFound)
	var de *domain.DialogueError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, "select node", de.Stage)

	failed := f.rec.last(domain.EventDialogueFailed)
	require.NotNil(t, failed)
	assert.Contains(t, failed.Message, "node not found")
	assert.Equal(t, runtime.SuspendSelection, f.mgr.Suspension().Kind, "session keeps waiting")
	assert.Equal(t, question.GUID, f.mgr.Context().ActiveNode)
}

func TestManager_DecoratorExcludesCandidate(t *testing.T) {
	f := newFixture(t)
	a := f.lead(domain.KindLead, "a", line("First.", time.Second, domain.ExecutionAutomatic))
	once := f.lead(domain.KindLead, "once", line("Only once.", time.Second, domain.ExecutionAutomatic))
	once.Decorators = []domain.DecoratorSpec{{Type: "only_first_time"}}
	fallback := f.node(domain.KindComplete, "fallback")
	fallback.Position = 10
	f.connect(f.graph.Start(), a)
	f.connect(a, once)
	f.connect(a, fallback)

	ctx := context.Background()
	require.NoError(t, f.start())
	allowed, err := f.mgr.AllowedChildren(ctx, a.GUID)
	require.NoError(t, err)
	assert.Contains(t, allowed, once.GUID)

	f.sched.Advance(time.Second)
	assert.Equal(t, once.GUID, f.mgr.Context().ActiveNode)

	allowed, err = f.mgr.AllowedChildren(ctx, a.GUID)
	require.NoError(t, err)
	assert.NotContains(t, allowed, once.GUID, "the edge exists but the decorator refuses")
	assert.Contains(t, allowed, fallback.GUID)
}

func TestManager_StartFailures(t *testing.T) {
	t.Run("missing participants are aggregated", func(t *testing.T) {
		f := newFixture(t)
		a := f.lead(domain.KindLead, "a", line("Hi.", time.Second, domain.ExecutionAutomatic))
		f.connect(f.graph.Start(), a)

		err := f.mgr.Start(context.Background(), runtime.StartRequest{Graph: f.graph})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrInvalidParticipant)
		assert.Len(t, domain.Errors(errors.Unwrap(err)), 2)
		assert.Equal(t, domain.StateEnabled, f.mgr.State())
		assert.Nil(t, f.mgr.Context(), "no partial state is created")
		assert.Equal(t, 1, f.rec.count(domain.EventDialogueFailed))
	})

	t.Run("participant refuses", func(t *testing.T) {
		f := newFixture(t)
		a := f.lead(domain.KindLead, "a", line("Hi.", time.Second, domain.ExecutionAutomatic))
		f.connect(f.graph.Start(), a)
		err := f.mgr.Start(context.Background(), runtime.StartRequest{
			Graph:     f.graph,
			Initiator: f.player,
			Main:      memory.NewParticipant("busy", memory.CannotStart()),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidParticipant)
	})

	t.Run("graph cannot start", func(t *testing.T) {
		f := newFixture(t)
		assert.ErrorIs(t, f.start(), domain.ErrCannotStart)
	})

	t.Run("already active", func(t *testing.T) {
		f := newFixture(t)
		a := f.lead(domain.KindLead, "a", line("Hi.", time.Second, domain.ExecutionAutomatic))
		f.connect(f.graph.Start(), a)
		require.NoError(t, f.start())
		assert.ErrorIs(t, f.start(), domain.ErrManagerActive)
		assert.Equal(t, a.GUID, f.mgr.Context().ActiveNode)
	})

	t.Run("unknown graph name", func(t *testing.T) {
		f := newFixture(t, runtime.WithLoader(memory.NewLoader()))
		err := f.mgr.Start(context.Background(), runtime.StartRequest{
			GraphName: "nowhere",
			Initiator: f.player,
			Main:      f.npc,
		})
		assert.ErrorIs(t, err, domain.ErrGraphNotFound)
	})
}

func TestManager_LoadsGraphCarriedByParticipant(t *testing.T) {
	f := newFixture(t)
	a := f.lead(domain.KindLead, "a", line("Hi.", time.Second, domain.ExecutionAutomatic))
	f.connect(f.graph.Start(), a)
	mgr := runtime.New(f.rows, f.sched, runtime.WithLoader(memory.NewLoader(f.graph)))

	npc := memory.NewParticipant("npc", memory.WithGraph("test"))
	require.NoError(t, mgr.Start(context.Background(), runtime.StartRequest{Initiator: f.player, Main: npc}))
	assert.Equal(t, a.GUID, mgr.Context().ActiveNode)
	assert.Equal(t, "dialogue-manager", npc.Manager())
	assert.NotEmpty(t, mgr.SessionID())
}

func TestManager_SavedStartingNode(t *testing.T) {
	f := newFixture(t)
	a := f.lead(domain.KindLead, "a", line("First meeting.", time.Second, domain.ExecutionAutomatic))
	b := f.lead(domain.KindLead, "b", line("Welcome back.", time.Second, domain.ExecutionAutomatic))
	b.Decorators = []domain.DecoratorSpec{{Type: "save_node_as_start"}}
	f.connect(f.graph.Start(), a)
	f.connect(a, b)

	require.NoError(t, f.start())
	f.sched.Advance(time.Second)
	assert.Equal(t, b.GUID, f.npc.SavedStartingNode())
	f.sched.Advance(time.Second)
	require.Equal(t, domain.StateEnabled, f.mgr.State())

	require.NoError(t, f.start())
	assert.Equal(t, b.GUID, f.mgr.Context().ActiveNode, "saved node is used while startable")
	require.NoError(t, f.mgr.Close(context.Background()))

	f.npc.SaveStartingNode(domain.NewGUID())
	require.NoError(t, f.start())
	assert.Equal(t, a.GUID, f.mgr.Context().ActiveNode, "unknown saved node falls back to the first node")
}

func TestManager_CloseFromAnyStage(t *testing.T) {
	stages := map[string]func(f *fixture){
		"row playing": func(f *fixture) {},
		"awaiting input": func(f *fixture) {
			f.sched.Advance(time.Second)
		},
		"awaiting selection": func(f *fixture) {
			f.sched.Advance(time.Second)
			require.NoError(f.t, f.mgr.Skip(context.Background()))
			f.sched.Advance(time.Second)
		},
		"delay": func(f *fixture) {
			f.sched.Advance(time.Second)
			require.NoError(f.t, f.mgr.Skip(context.Background()))
			f.sched.Advance(time.Second)
			require.NoError(f.t, f.mgr.SelectNode(context.Background(), f.graph.NodeByName("pause").GUID))
		},
	}

	for name, reach := range stages {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			a := f.lead(domain.KindLead, "a", line("Wait.", time.Second, domain.ExecutionAwaitInput))
			b := f.lead(domain.KindLead, "b", line("Then.", time.Second, domain.ExecutionAutomatic))
			opt1 := f.node(domain.KindDelay, "pause")
			opt1.AutoStarts = false
			opt2 := f.node(domain.KindComplete, "stop")
			opt2.AutoStarts = false
			f.connect(f.graph.Start(), a)
			f.connect(a, b)
			f.connect(b, opt1)
			f.connect(b, opt2)
			require.NoError(t, f.start())
			reach(f)
			require.Equal(t, domain.StateActive, f.mgr.State())

			require.NoError(t, f.mgr.Close(context.Background()))
			assert.Equal(t, f.mgr.DefaultState(), f.mgr.State())
			assert.Nil(t, f.mgr.Context())
			assert.Equal(t, runtime.SuspendNone, f.mgr.Suspension().Kind)
			assert.Zero(t, f.sched.Pending(), "every timer is cancelled")

			f.sched.Advance(time.Hour)
			assert.Equal(t, 1, f.rec.count(domain.EventDialogueClosed))
			assert.Zero(t, f.rec.count(domain.EventDialogueFailed))
		})
	}
}

func TestManager_RowSequenceAndStopping(t *testing.T) {
	f := newFixture(t)
	a := f.lead(domain.KindLead, "a",
		line("One.", time.Second, domain.ExecutionAutomatic),
		line("Two.", time.Second, domain.ExecutionStopping),
		line("Never.", time.Second, domain.ExecutionAutomatic),
	)
	f.connect(f.graph.Start(), a)
	require.NoError(t, f.start())

	f.sched.Advance(time.Second)
	assert.Equal(t, 1, f.mgr.Context().ActiveRowDataIndex)
	assert.Equal(t, domain.CommandShowSkip, f.mgr.Context().LastUICommand)

	f.sched.Advance(time.Second)
	assert.Equal(t, 2, f.rec.count(domain.EventRowStarted), "stopping ends the sequence early")
	assert.Equal(t, domain.StateEnabled, f.mgr.State())
	assert.Contains(t, f.ui.Commands(), domain.CommandUpdateRow)
}

func TestManager_InvalidRowDataIsSkipped(t *testing.T) {
	f := newFixture(t)
	a := f.lead(domain.KindLead, "a",
		domain.RowData{GUID: domain.NewGUID(), Execution: domain.ExecutionAutomatic},
		line("Still here.", time.Second, domain.ExecutionAutomatic),
	)
	f.connect(f.graph.Start(), a)
	require.NoError(t, f.start())

	assert.Equal(t, 1, f.rec.count(domain.EventDialogueFailed))
	assert.Equal(t, 1, f.mgr.Context().ActiveRowDataIndex)
	assert.Equal(t, runtime.SuspendRow, f.mgr.Suspension().Kind)
}

func TestManager_MissingRowSkipsNode(t *testing.T) {
	f := newFixture(t)
	a := f.node(domain.KindLead, "ghost")
	a.RowTable, a.RowKey = "lines", "missing"
	b := f.lead(domain.KindLead, "b", line("Found me.", time.Second, domain.ExecutionAutomatic))
	f.connect(f.graph.Start(), a)
	f.connect(a, b)
	require.NoError(t, f.start())

	assert.Contains(t, f.rec.last(domain.EventDialogueFailed).Message, "row not found")
	assert.Equal(t, b.GUID, f.mgr.Context().ActiveNode)
}

func TestManager_SetState(t *testing.T) {
	f := newFixture(t)
	a := f.lead(domain.KindLead, "a", line("Hi.", time.Second, domain.ExecutionAutomatic))
	f.connect(f.graph.Start(), a)
	ctx := context.Background()

	require.NoError(t, f.mgr.SetState(ctx, domain.StateEnabled))
	assert.Zero(t, f.rec.count(domain.EventStateChanged), "same state is a silent no-op")

	assert.Error(t, f.mgr.SetState(ctx, domain.StateActive))
	assert.Error(t, f.mgr.SetState(ctx, domain.ManagerState("bogus")))

	require.NoError(t, f.start())
	require.NoError(t, f.mgr.SetState(ctx, domain.StateDisabled))
	assert.Equal(t, domain.StateDisabled, f.mgr.State())
	assert.Nil(t, f.mgr.Context(), "leaving active stops the session")
}

func TestManager_DefaultStateDisabled(t *testing.T) {
	settings := domain.DefaultSettings()
	settings.DefaultState = domain.StateDisabled
	f := newFixture(t, runtime.WithSettings(settings))
	a := f.lead(domain.KindLead, "a", line("Hi.", time.Second, domain.ExecutionAutomatic))
	f.connect(f.graph.Start(), a)

	assert.Equal(t, domain.StateDisabled, f.mgr.State())
	require.NoError(t, f.start())
	f.sched.Advance(time.Second)
	assert.Equal(t, domain.StateDisabled, f.mgr.State())
}
