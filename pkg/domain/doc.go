/*
Package domain contains the core data model of the Parley dialogue engine.

It defines the authored structure (Graph, Node, Row) and the runtime cursor
(Context) that a session manager advances through the graph. The package is
free of I/O and scheduling concerns so the same types can travel between an
authoritative session owner and its mirrored peers.

# Key Entities

  - Graph: the authored node set, its single Start node and graph-level decorators.
  - Node: a vertex tagged with a NodeKind. Behaviour differences between kinds
    are described by the Capabilities table rather than by type hierarchy.
  - Row / RowData: authored content played when a content node is entered.
  - Context: the mutable session cursor owned by the authority.
  - Snapshot: the wire form of a Context, merged into peers with Context.Merge.
*/
package domain
