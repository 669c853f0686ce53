package domain

import "slices"

// Snapshot is the flattened wire record of a Context mirrored from the
// authority to its peers. Peers apply the highest Sequence they have seen.
type Snapshot struct {
	SessionID string       `json:"session_id"`
	Sequence  uint64       `json:"seq"`
	State     ManagerState `json:"state"`

	ActiveNode         GUID      `json:"active_node"`
	AllowedChildren    []GUID    `json:"allowed_children,omitempty"`
	ActiveParticipant  string    `json:"active_participant,omitempty"`
	MainParticipant    string    `json:"main_participant,omitempty"`
	Player             string    `json:"player,omitempty"`
	Participants       []string  `json:"participants,omitempty"`
	ActiveRowTable     string    `json:"active_row_table,omitempty"`
	ActiveRowKey       string    `json:"active_row_key,omitempty"`
	ActiveRowDataIndex int       `json:"active_row_data_index"`
	LastUICommand      UICommand `json:"last_ui_command,omitempty"`

	// Sealed carries the encrypted form of a snapshot at rest. It is never
	// set on snapshots handed to peers.
	Sealed []byte `json:"sealed,omitempty"`
}

// Closed reports whether the snapshot describes a session without context.
func (s *Snapshot) Closed() bool {
	return s == nil || s.ActiveNode == NilGUID
}

// Snapshot flattens c into its wire form. A nil context yields a closed snapshot.
func (c *Context) Snapshot(sessionID string, seq uint64, state ManagerState) Snapshot {
	s := Snapshot{SessionID: sessionID, Sequence: seq, State: state}
	if c == nil {
		return s
	}
	s.ActiveNode = c.ActiveNode
	s.AllowedChildren = append([]GUID(nil), c.AllowedChildren...)
	s.ActiveParticipant = c.ActiveParticipant
	s.MainParticipant = c.MainParticipant
	s.Player = c.Player
	s.Participants = append([]string(nil), c.Participants...)
	s.ActiveRowTable = c.ActiveRowTable
	s.ActiveRowKey = c.ActiveRowKey
	s.ActiveRowDataIndex = c.ActiveRowDataIndex
	s.LastUICommand = c.LastUICommand
	return s
}

// Merge applies a snapshot onto c field by field (context += snapshot).
// Local values survive. When the row reference changes the resolved row is
// dropped so the caller can resolve it again. It reports whether anything changed.
func (c *Context) Merge(s Snapshot) bool {
	changed := false
	if c.ActiveNode != s.ActiveNode {
		c.ActiveNode = s.ActiveNode
		changed = true
	}
	if !slices.Equal(c.AllowedChildren, s.AllowedChildren) {
		c.AllowedChildren = append([]GUID(nil), s.AllowedChildren...)
		changed = true
	}
	if c.ActiveParticipant != s.ActiveParticipant {
		c.ActiveParticipant = s.ActiveParticipant
		changed = true
	}
	if c.MainParticipant != s.MainParticipant {
		c.MainParticipant = s.MainParticipant
		changed = true
	}
	if c.Player != s.Player {
		c.Player = s.Player
		changed = true
	}
	if !slices.Equal(c.Participants, s.Participants) {
		c.Participants = append([]string(nil), s.Participants...)
		changed = true
	}
	if c.ActiveRowTable != s.ActiveRowTable || c.ActiveRowKey != s.ActiveRowKey {
		c.ActiveRowTable = s.ActiveRowTable
		c.ActiveRowKey = s.ActiveRowKey
		c.ActiveRow = nil
		changed = true
	}
	if c.ActiveRowDataIndex != s.ActiveRowDataIndex {
		c.ActiveRowDataIndex = s.ActiveRowDataIndex
		changed = true
	}
	if c.LastUICommand != s.LastUICommand {
		c.LastUICommand = s.LastUICommand
		changed = true
	}
	if c.Local == nil {
		c.Local = make(map[string]any)
	}
	return changed
}
