package parley_test

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/aretw0/parley"
	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/dsl"
)

// ExampleNew_library runs a graph authored in Go, without reading from the
// file system, on a manually advanced clock.
func ExampleNew_library() {
	b := dsl.New("greeting")
	b.Lead("hello").Says("npc", "Hello, traveller.").For(2 * time.Second).Go("done")
	b.Complete("done")
	g, rows := b.MustBuild()

	eng, err := parley.New("", parley.WithLoader(memory.NewLoader(g)), parley.WithRows(rows))
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	sched := memory.NewManualScheduler(time.Time{})
	mgr := eng.NewManager(sched)
	err = mgr.Start(ctx, parley.StartRequest{
		GraphName: "greeting",
		Initiator: memory.NewParticipant("player"),
		Main:      memory.NewParticipant("npc"),
	})
	if err != nil {
		log.Fatal(err)
	}

	c := mgr.Context()
	fmt.Println(mgr.State(), c.ActiveParticipant, c.ActiveRow.Data[0].Text)

	sched.Advance(2 * time.Second)
	fmt.Println(mgr.State(), mgr.Context() == nil)
	// Output:
	// active npc Hello, traveller.
	// enabled true
}
