package decorator

import (
	"context"
	"time"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

const (
	TypeOnlyFirstTime         = "only_first_time"
	TypeOverrideDialogue      = "override_dialogue"
	TypeOverrideOnlyFirstTime = "override_only_first_time"
	TypeSwapParticipants      = "swap_participants"
	TypeSelectRandomRow       = "select_random_row"
	TypeSaveNodeAsStart       = "save_node_as_start"
	TypeSendCommand           = "send_command"
	TypeOverrideParticipants  = "override_participants"
)

// OnlyFirstTime offers a node only while it has never been entered.
type OnlyFirstTime struct {
	Base
}

func (d *OnlyFirstTime) Type() string { return TypeOnlyFirstTime }

func (d *OnlyFirstTime) Validate(owner Owner) []string {
	if owner.Node == nil {
		return nil
	}
	switch {
	case owner.Node.Kind == domain.KindStart:
		return []string{"OnlyFirstTime is not allowed on the Start node"}
	case owner.Node.Kind == domain.KindReturnTo:
		return []string{"OnlyFirstTime is not allowed on ReturnTo nodes"}
	case owner.Graph != nil && owner.Graph.FirstNode() == owner.Node:
		return []string{"OnlyFirstTime is not allowed on the first node after Start"}
	}
	return nil
}

func (d *OnlyFirstTime) Evaluate(_ context.Context, node *domain.Node) bool {
	c := d.dialogueContext()
	if c == nil || node == nil {
		return true
	}
	return c.TraversalCount(node.GUID) == 0
}

// OverrideDialogue redirects the content of the entered node to another row.
type OverrideDialogue struct {
	Base
	Table string `mapstructure:"table"`
	Key   string `mapstructure:"key"`
}

func (d *OverrideDialogue) Type() string { return TypeOverrideDialogue }

func (d *OverrideDialogue) Validate(Owner) []string {
	return validateRowRef(d.Table, d.Key)
}

func (d *OverrideDialogue) Execute(_ context.Context, _ *domain.Node) {
	if c := d.dialogueContext(); c != nil {
		c.ActiveRowTable, c.ActiveRowKey = d.Table, d.Key
	}
}

// OverrideOnlyFirstTime redirects the content on the first visit only.
type OverrideOnlyFirstTime struct {
	Base
	Table string `mapstructure:"table"`
	Key   string `mapstructure:"key"`
}

func (d *OverrideOnlyFirstTime) Type() string { return TypeOverrideOnlyFirstTime }

func (d *OverrideOnlyFirstTime) Validate(Owner) []string {
	return validateRowRef(d.Table, d.Key)
}

func (d *OverrideOnlyFirstTime) Execute(_ context.Context, node *domain.Node) {
	c := d.dialogueContext()
	if c == nil || node == nil || c.TraversalCount(node.GUID) > 0 {
		return
	}
	c.ActiveRowTable, c.ActiveRowKey = d.Table, d.Key
}

func validateRowRef(table, key string) []string {
	var msgs []string
	if table == "" {
		msgs = append(msgs, "requires a non-empty row table")
	}
	if key == "" {
		msgs = append(msgs, "requires a non-empty row key")
	}
	return msgs
}

// SwapParticipants toggles the active participant between the player and
// the main participant.
type SwapParticipants struct {
	Base
}

func (d *SwapParticipants) Type() string { return TypeSwapParticipants }

func (d *SwapParticipants) Execute(_ context.Context, _ *domain.Node) {
	c := d.dialogueContext()
	if c == nil || c.Player == "" {
		return
	}
	if c.ActiveParticipant == c.Player {
		c.SetActiveParticipant(c.MainParticipant)
		return
	}
	c.SetActiveParticipant(c.Player)
}

// SelectRandomRow starts the entered node at a random row-data index within
// [Min, Max], clamped to the entries the row actually has. A negative Max
// means the last entry.
type SelectRandomRow struct {
	Base
	Min int `mapstructure:"min"`
	Max int `mapstructure:"max"`
}

func (d *SelectRandomRow) Type() string { return TypeSelectRandomRow }

func (d *SelectRandomRow) Validate(owner Owner) []string {
	if owner.Node == nil {
		return []string{"SelectRandomRow is not allowed in Graph Decorators"}
	}
	if !owner.Node.CarriesContent() {
		return []string{"SelectRandomRow requires a node with dialogue rows"}
	}
	if d.Max >= 0 && d.Max < d.Min {
		return []string{"SelectRandomRow max is lower than min"}
	}
	return nil
}

func (d *SelectRandomRow) Execute(ctx context.Context, _ *domain.Node) {
	c := d.dialogueContext()
	if c == nil || d.host.Rows() == nil {
		return
	}
	row, err := d.host.Rows().Row(ctx, c.ActiveRowTable, c.ActiveRowKey)
	if err != nil || len(row.Data) == 0 {
		return
	}
	lo, hi := max(0, d.Min), len(row.Data)-1
	if d.Max >= 0 {
		hi = min(hi, d.Max)
	}
	if hi < lo {
		lo = hi
	}
	c.ActiveRowDataIndex = lo + d.host.Rand().IntN(hi-lo+1)
}

// SaveNodeAsStart records the entered node as the resume point of every participant.
type SaveNodeAsStart struct {
	Base
}

func (d *SaveNodeAsStart) Type() string { return TypeSaveNodeAsStart }

func (d *SaveNodeAsStart) Validate(owner Owner) []string {
	if owner.Node != nil && owner.Node.Kind == domain.KindStart {
		return []string{"SaveNodeAsStart is not allowed on the Start node"}
	}
	return nil
}

func (d *SaveNodeAsStart) Execute(_ context.Context, node *domain.Node) {
	if d.host == nil || node == nil {
		return
	}
	for _, p := range d.host.Participants() {
		p.SaveStartingNode(node.GUID)
	}
}

// SendCommand forwards a command to a participant when the node is entered,
// optionally after a delay. Target defaults to the active participant; "*"
// addresses every participant.
type SendCommand struct {
	Base
	Command string         `mapstructure:"command"`
	Target  string         `mapstructure:"target"`
	Payload map[string]any `mapstructure:"payload"`
	Delay   time.Duration  `mapstructure:"delay"`

	pending []ports.TimerHandle
}

func (d *SendCommand) Type() string    { return TypeSendCommand }
func (d *SendCommand) Stackable() bool { return true }

func (d *SendCommand) Validate(Owner) []string {
	if d.Command == "" {
		return []string{"SendCommand requires a non-empty command"}
	}
	return nil
}

func (d *SendCommand) Execute(ctx context.Context, _ *domain.Node) {
	if d.host == nil {
		return
	}
	targets := d.targets()
	if d.Delay <= 0 {
		d.send(ctx, targets)
		return
	}
	// Delayed sends run detached from the request that entered the node.
	detached := context.WithoutCancel(ctx)
	h := d.host.Scheduler().Schedule(d.Delay, func() { d.send(detached, targets) })
	d.pending = append(d.pending, h)
}

func (d *SendCommand) send(ctx context.Context, targets []ports.Participant) {
	for _, p := range targets {
		p.ProcessCommand(ctx, d.Command, d.Payload)
	}
}

func (d *SendCommand) targets() []ports.Participant {
	if d.Target == "*" {
		return d.host.Participants()
	}
	id := d.Target
	if id == "" {
		c := d.dialogueContext()
		if c == nil {
			return nil
		}
		id = c.ActiveParticipant
	}
	if p, ok := d.host.Participant(id); ok {
		return []ports.Participant{p}
	}
	return nil
}

func (d *SendCommand) Cleanup() {
	if d.host != nil {
		for _, h := range d.pending {
			d.host.Scheduler().Cancel(h)
		}
	}
	d.pending = nil
}

// OverrideParticipants makes Participant the active speaker of the entered node.
type OverrideParticipants struct {
	Base
	Participant string `mapstructure:"participant"`
}

func (d *OverrideParticipants) Type() string { return TypeOverrideParticipants }

func (d *OverrideParticipants) Validate(Owner) []string {
	if d.Participant == "" {
		return []string{"OverrideParticipants requires a participant"}
	}
	return nil
}

func (d *OverrideParticipants) Execute(_ context.Context, _ *domain.Node) {
	c := d.dialogueContext()
	if c == nil {
		return
	}
	if !c.SetActiveParticipant(d.Participant) {
		d.host.Logger().Debug("override participant ignored", "participant", d.Participant)
	}
}
