package domain

// TraversedNode counts how often a node was entered during a session.
type TraversedNode struct {
	Node  GUID `json:"node"`
	Count int  `json:"count"`
}

// Context is the session cursor. Only the authority mutates it directly;
// peers hold a copy that changes through Merge.
type Context struct {
	ActiveNode      GUID   `json:"active_node"`
	AllowedChildren []GUID `json:"allowed_children,omitempty"`

	ActiveParticipant string   `json:"active_participant"`
	MainParticipant   string   `json:"main_participant"`
	Player            string   `json:"player,omitempty"`
	Participants      []string `json:"participants"`

	ActiveRowTable     string `json:"active_row_table,omitempty"`
	ActiveRowKey       string `json:"active_row_key,omitempty"`
	ActiveRow          *Row   `json:"active_row,omitempty"`
	ActiveRowDataIndex int    `json:"active_row_data_index"`

	TraversedPath []TraversedNode `json:"traversed_path,omitempty"`
	LastUICommand UICommand       `json:"last_ui_command,omitempty"`

	// Local holds peer-side values such as widget handles. Merge never touches it.
	Local map[string]any `json:"-"`
}

// NewContext creates a context for the given main participant, player and
// secondary participants. The main participant starts as the active one.
func NewContext(main, player string, others []string) *Context {
	c := &Context{
		MainParticipant:   main,
		Player:            player,
		ActiveParticipant: main,
		Local:             make(map[string]any),
	}
	c.Participants = appendUnique(c.Participants, main)
	c.Participants = appendUnique(c.Participants, player)
	for _, p := range others {
		c.Participants = appendUnique(c.Participants, p)
	}
	return c
}

// IsValid reports whether the context points at an active node.
func (c *Context) IsValid() bool {
	return c != nil && c.ActiveNode != NilGUID
}

// SetActiveNode moves the cursor to node with the given allowed children.
func (c *Context) SetActiveNode(node GUID, allowed []GUID) {
	c.ActiveNode = node
	c.AllowedChildren = append([]GUID(nil), allowed...)
}

// HasParticipant reports whether id takes part in the session.
func (c *Context) HasParticipant(id string) bool {
	if id == "" {
		return false
	}
	for _, p := range c.Participants {
		if p == id {
			return true
		}
	}
	return false
}

// SetActiveParticipant switches the speaking participant. Only the player or
// a member of the participant set is accepted.
func (c *Context) SetActiveParticipant(id string) bool {
	if id == "" || (id != c.Player && !c.HasParticipant(id)) {
		return false
	}
	c.ActiveParticipant = id
	return true
}

// SetActiveRow replaces the resolved row. The row-data index is kept when it
// still addresses the new row and reset to zero otherwise.
func (c *Context) SetActiveRow(table, key string, row *Row) {
	c.ActiveRowTable = table
	c.ActiveRowKey = key
	c.ActiveRow = row
	if !row.HasIndex(c.ActiveRowDataIndex) {
		c.ActiveRowDataIndex = 0
	}
}

// SetRowDataIndex moves to entry i of the active row. Out of range values are refused.
func (c *Context) SetRowDataIndex(i int) bool {
	if !c.ActiveRow.HasIndex(i) {
		return false
	}
	c.ActiveRowDataIndex = i
	return true
}

// ActiveRowData returns the entry at the current index.
func (c *Context) ActiveRowData() (RowData, bool) {
	if c == nil || !c.ActiveRow.HasIndex(c.ActiveRowDataIndex) {
		return RowData{}, false
	}
	return c.ActiveRow.Data[c.ActiveRowDataIndex], true
}

// RecordTraversal counts one more visit of node.
func (c *Context) RecordTraversal(node GUID) {
	for i := range c.TraversedPath {
		if c.TraversedPath[i].Node == node {
			c.TraversedPath[i].Count++
			return
		}
	}
	c.TraversedPath = append(c.TraversedPath, TraversedNode{Node: node, Count: 1})
}

// TraversalCount returns how often node was entered.
func (c *Context) TraversalCount(node GUID) int {
	if c == nil {
		return 0
	}
	for _, t := range c.TraversedPath {
		if t.Node == node {
			return t.Count
		}
	}
	return 0
}

// Clone returns a deep copy. The active row is shared since rows are read-only.
func (c *Context) Clone() *Context {
	if c == nil {
		return nil
	}
	out := *c
	out.AllowedChildren = append([]GUID(nil), c.AllowedChildren...)
	out.Participants = append([]string(nil), c.Participants...)
	out.TraversedPath = append([]TraversedNode(nil), c.TraversedPath...)
	out.Local = make(map[string]any, len(c.Local))
	for k, v := range c.Local {
		out.Local[k] = v
	}
	return &out
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
