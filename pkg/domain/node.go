package domain

import "time"

// Edge carries metadata for a structural parent to child link.
type Edge struct {
	Label string `json:"label,omitempty"`
}

// DecoratorSpec is the authored form of a decorator attached to a node or graph.
// The runtime turns each spec into a live decorator instance per session.
type DecoratorSpec struct {
	Type   string         `json:"type" mapstructure:"type"`
	Params map[string]any `json:"params,omitempty" mapstructure:"params"`
}

// Node is a vertex of a dialogue graph.
type Node struct {
	GUID  GUID     `json:"guid"`
	Name  string   `json:"name,omitempty"`
	Kind  NodeKind `json:"kind"`
	Title string   `json:"title,omitempty"`

	// Parents are back-references. Children are ordered as authored.
	Parents  []GUID        `json:"parents,omitempty"`
	Children []GUID        `json:"children,omitempty"`
	Edges    map[GUID]Edge `json:"edges,omitempty"`

	Decorators             []DecoratorSpec `json:"decorators,omitempty"`
	InheritGraphDecorators bool            `json:"inherit_graph_decorators"`
	AutoStarts             bool            `json:"auto_starts"`
	MaxChildren            int             `json:"max_children,omitempty"`

	// RowTable and RowKey point content nodes at their Row.
	RowTable string `json:"row_table,omitempty"`
	RowKey   string `json:"row_key,omitempty"`

	// Delay applies to Delay and ReturnTo nodes.
	Delay time.Duration `json:"delay,omitempty"`
	// ReturnTarget is the non-structural jump target of a ReturnTo node.
	ReturnTarget GUID `json:"return_target,omitempty"`

	// ExecutionOrder is assigned at authoring time and breaks ties when
	// several children could start automatically. Position is the horizontal
	// authoring coordinate used to order nodes within one layer.
	ExecutionOrder int     `json:"execution_order"`
	Position       float64 `json:"position,omitempty"`
}

// NewNode returns a node of the given kind with the defaults of its capabilities.
// The GUID is derived from name so re-authoring the same name is stable.
func NewNode(kind NodeKind, name string) *Node {
	caps := kind.Capabilities()
	n := &Node{
		GUID:                   GUIDFromName(name),
		Name:                   name,
		Kind:                   kind,
		Title:                  name,
		Edges:                  make(map[GUID]Edge),
		InheritGraphDecorators: caps.InheritGraphDecorators,
		AutoStarts:             caps.AutoStarts,
		MaxChildren:            caps.MaxChildren,
	}
	switch kind {
	case KindDelay:
		n.Delay = DefaultDelayDuration
	case KindReturnTo:
		n.Delay = DefaultReturnDelay
	}
	if n.GUID == NilGUID {
		n.GUID = NewGUID()
	}
	return n
}

// CarriesContent reports whether entering the node plays a Row.
func (n *Node) CarriesContent() bool {
	return n.Kind.Capabilities().CarriesContent
}

// IsTerminal reports whether reaching the node ends the session.
func (n *Node) IsTerminal() bool {
	return n.Kind.Capabilities().Terminal
}

// HasChild reports whether id is a structural child of n.
func (n *Node) HasChild(id GUID) bool {
	for _, c := range n.Children {
		if c == id {
			return true
		}
	}
	return false
}

// CanStart is the structural eligibility check independent of decorators.
func (n *Node) CanStart() bool {
	if n == nil || n.GUID == NilGUID || !n.Kind.Valid() {
		return false
	}
	if n.MaxChildren > 0 && len(n.Children) > n.MaxChildren {
		return false
	}
	switch n.Kind {
	case KindStart:
		return len(n.Children) > 0
	case KindLead, KindAnswer:
		return n.RowTable != "" && n.RowKey != ""
	case KindDelay:
		return n.Delay > 0
	case KindReturnTo:
		return n.ReturnTarget != NilGUID
	}
	return true
}

// Label is the human readable name used in diagnostics.
func (n *Node) Label() string {
	switch {
	case n == nil:
		return "<nil>"
	case n.Title != "":
		return n.Title
	case n.Name != "":
		return n.Name
	}
	return n.GUID.String()
}
