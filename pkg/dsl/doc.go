/*
Package dsl provides a fluent Go builder for authoring Parley dialogue graphs.

It lets a graph and its row table be declared in code instead of a Loam
repository, which is handy for tests, generated content and examples. Nodes
are referenced by name; GUIDs are derived from the graph and node names so
rebuilding the same definition yields the same identifiers.

Example usage:

	b := dsl.New("gate")

	b.Lead("question").
		Says("guard", "Who goes there?").
		Go("friend", "nobody")

	b.Answer("friend").Says("hero", "A friend.").Go("done")
	b.Answer("nobody").Says("hero", "Nobody.").Go("done")
	b.Complete("done")

	graph, rows, err := b.Build()
	// graph and rows plug into runtime.New and memory.NewLoader.
*/
package dsl
