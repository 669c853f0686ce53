package domain

import "fmt"

// Graph owns the node set of one authored dialogue.
// It is built once and treated as read-only by the runtime.
type Graph struct {
	GUID       GUID            `json:"guid"`
	Name       string          `json:"name"`
	StartNode  GUID            `json:"start_node"`
	Nodes      []*Node         `json:"nodes"`
	Decorators []DecoratorSpec `json:"decorators,omitempty"`

	index map[GUID]*Node
}

// NewGraph creates a graph holding only its Start node.
func NewGraph(name string) *Graph {
	start := NewNode(KindStart, "start")
	g := &Graph{
		GUID:      GUIDFromName(name),
		Name:      name,
		StartNode: start.GUID,
		Nodes:     []*Node{start},
	}
	if g.GUID == NilGUID {
		g.GUID = NewGUID()
	}
	g.Reindex()
	return g
}

// Reindex rebuilds the GUID lookup. Call it after decoding a graph.
func (g *Graph) Reindex() {
	g.index = make(map[GUID]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		g.index[n.GUID] = n
	}
}

// AddNode appends n to the graph. A second Start node or a GUID already in
// use is rejected.
func (g *Graph) AddNode(n *Node) error {
	if n == nil || n.GUID == NilGUID {
		return fmt.Errorf("add node: %w", ErrInvalidNode)
	}
	if n.Kind == KindStart {
		return fmt.Errorf("add node %q: %w", n.Label(), ErrStartExists)
	}
	if g.Node(n.GUID) != nil {
		return fmt.Errorf("add node %q: %w", n.Label(), ErrDuplicateGUID)
	}
	if n.Edges == nil {
		n.Edges = make(map[GUID]Edge)
	}
	g.Nodes = append(g.Nodes, n)
	if g.index == nil {
		g.Reindex()
	} else {
		g.index[n.GUID] = n
	}
	return nil
}

// RemoveNode deletes a node and every edge touching it. The Start node stays.
func (g *Graph) RemoveNode(id GUID) error {
	if id == g.StartNode {
		return ErrStartNotRemovable
	}
	kept := g.Nodes[:0]
	found := false
	for _, n := range g.Nodes {
		if n.GUID == id {
			found = true
			continue
		}
		n.Children = without(n.Children, id)
		n.Parents = without(n.Parents, id)
		delete(n.Edges, id)
		kept = append(kept, n)
	}
	if !found {
		return ErrNodeNotFound
	}
	g.Nodes = kept
	g.Reindex()
	return nil
}

// Connect links parent to child and records the back-reference.
func (g *Graph) Connect(parent, child GUID, edge Edge) error {
	p, c := g.Node(parent), g.Node(child)
	if p == nil || c == nil {
		return ErrNodeNotFound
	}
	if p.HasChild(child) {
		return nil
	}
	p.Children = append(p.Children, child)
	if p.Edges == nil {
		p.Edges = make(map[GUID]Edge)
	}
	p.Edges[child] = edge
	c.Parents = append(c.Parents, parent)
	return nil
}

// Node returns the node with the given GUID, or nil.
func (g *Graph) Node(id GUID) *Node {
	if g == nil {
		return nil
	}
	if g.index != nil {
		return g.index[id]
	}
	for _, n := range g.Nodes {
		if n.GUID == id {
			return n
		}
	}
	return nil
}

// NodeByName finds a node by its authored name.
func (g *Graph) NodeByName(name string) *Node {
	for _, n := range g.Nodes {
		if n.Name == name {
			return n
		}
	}
	return nil
}

// AllNodes returns the node set in authored order.
func (g *Graph) AllNodes() []*Node {
	return g.Nodes
}

// Start returns the Start node.
func (g *Graph) Start() *Node {
	return g.Node(g.StartNode)
}

// FirstNode returns the first child of the Start node.
func (g *Graph) FirstNode() *Node {
	start := g.Start()
	if start == nil || len(start.Children) == 0 {
		return nil
	}
	return g.Node(start.Children[0])
}

// Children resolves the child references of n, skipping dangling ones.
func (g *Graph) Children(n *Node) []*Node {
	if n == nil {
		return nil
	}
	out := make([]*Node, 0, len(n.Children))
	for _, id := range n.Children {
		if c := g.Node(id); c != nil {
			out = append(out, c)
		}
	}
	return out
}

// AllDecorators flattens node decorators followed by graph decorators.
func (g *Graph) AllDecorators() []DecoratorSpec {
	var out []DecoratorSpec
	for _, n := range g.Nodes {
		out = append(out, n.Decorators...)
	}
	return append(out, g.Decorators...)
}

// CanStartDialogueGraph reports whether a usable start point with at least
// one resolvable child exists.
func (g *Graph) CanStartDialogueGraph() bool {
	if g == nil {
		return false
	}
	return g.FirstNode() != nil
}

func without(ids []GUID, id GUID) []GUID {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
