package domain

import "slices"

// SnapshotDiff holds the fields that changed between two snapshots.
// It is serialised for partial updates on streaming clients.
type SnapshotDiff struct {
	// SessionID is always present to identify the target.
	SessionID string `json:"session_id"`
	Sequence  uint64 `json:"seq"`

	State              *ManagerState `json:"state,omitempty"`
	ActiveNode         *GUID         `json:"active_node,omitempty"`
	AllowedChildren    []GUID        `json:"allowed_children,omitempty"`
	ActiveParticipant  *string       `json:"active_participant,omitempty"`
	Participants       []string      `json:"participants,omitempty"`
	ActiveRow          *RowRef       `json:"active_row,omitempty"`
	ActiveRowDataIndex *int          `json:"active_row_data_index,omitempty"`
	LastUICommand      *UICommand    `json:"last_ui_command,omitempty"`
}

// RowRef names a row by table and key.
type RowRef struct {
	Table string `json:"table"`
	Key   string `json:"key"`
}

// Diff calculates the difference between old and new.
// If old is nil, it returns a diff representing the entire new snapshot.
// It returns nil when nothing changed.
func Diff(old, new *Snapshot) *SnapshotDiff {
	if new == nil {
		return nil
	}
	if old == nil {
		old = &Snapshot{}
	}

	d := &SnapshotDiff{SessionID: new.SessionID, Sequence: new.Sequence}
	if old.State != new.State {
		d.State = &new.State
	}
	if old.ActiveNode != new.ActiveNode {
		d.ActiveNode = &new.ActiveNode
	}
	if !slices.Equal(old.AllowedChildren, new.AllowedChildren) {
		d.AllowedChildren = append([]GUID{}, new.AllowedChildren...)
	}
	if old.ActiveParticipant != new.ActiveParticipant {
		d.ActiveParticipant = &new.ActiveParticipant
	}
	if !slices.Equal(old.Participants, new.Participants) {
		d.Participants = append([]string{}, new.Participants...)
	}
	if old.ActiveRowTable != new.ActiveRowTable || old.ActiveRowKey != new.ActiveRowKey {
		d.ActiveRow = &RowRef{Table: new.ActiveRowTable, Key: new.ActiveRowKey}
	}
	if old.ActiveRowDataIndex != new.ActiveRowDataIndex {
		d.ActiveRowDataIndex = &new.ActiveRowDataIndex
	}
	if old.LastUICommand != new.LastUICommand {
		d.LastUICommand = &new.LastUICommand
	}

	if d.IsEmpty() {
		return nil
	}
	return d
}

// IsEmpty checks if the diff contains any actionable changes.
func (d *SnapshotDiff) IsEmpty() bool {
	return d.State == nil &&
		d.ActiveNode == nil &&
		d.AllowedChildren == nil &&
		d.ActiveParticipant == nil &&
		d.Participants == nil &&
		d.ActiveRow == nil &&
		d.ActiveRowDataIndex == nil &&
		d.LastUICommand == nil
}
