/*
Package parley is a dialogue execution engine for interactive simulations.

Authored dialogue graphs are made of nodes (Lead, Answer, Delay, ReturnTo,
Complete, AutoComplete) connected by ordered edges and decorated with
conditions and side effects. A Manager runs one session at a time over such a
graph: it plays rows of participant lines with computed durations, offers and
auto-selects next nodes, honours skips and drives any registered UI widget.

One process owns a session as its authority and mirrors a flattened Snapshot
of the context to cosmetic peers, which rebuild their UI from it without ever
mutating the session themselves.

# Usage

Graphs and row tables are read from a Loam repository by default:

	eng, err := parley.New("./dialogues")
	if err != nil {
		log.Fatal(err)
	}

	mgr := eng.NewManager(nil) // real-time scheduler
	mgr.RegisterWidget(ctx, myWidget)
	err = mgr.Start(ctx, parley.StartRequest{
		GraphName: "gate",
		Initiator: player,
		Main:      guard,
	})

Hosts that keep graphs elsewhere inject a loader and a row resolver:

	eng, err := parley.New("", parley.WithLoader(loader), parley.WithRows(rows))
*/
package parley
