package dsl

import (
	"fmt"
	"time"

	"github.com/aretw0/parley/pkg/domain"
)

// NodeBuilder provides a fluent API for configuring a node.
type NodeBuilder struct {
	node     *domain.Node
	row      *domain.Row
	children []string
	returnTo string
}

// Says appends a line voiced by participant. The first call also makes
// participant the row's speaker. Durations are derived from the text.
func (n *NodeBuilder) Says(participant, text string) *NodeBuilder {
	if n.row == nil {
		return n
	}
	if n.row.Participant == "" {
		n.row.Participant = participant
	}
	return n.Line(domain.RowData{
		Text:         text,
		DurationMode: domain.DurationAutoCalculate,
		Execution:    domain.ExecutionAutomatic,
	})
}

// Line appends a fully specified row entry. A missing GUID is derived from
// the row and the entry index.
func (n *NodeBuilder) Line(data domain.RowData) *NodeBuilder {
	if n.row == nil {
		return n
	}
	if data.GUID == domain.NilGUID {
		data.GUID = domain.GUIDFromName(fmt.Sprintf("%s#%d", n.row.GUID, len(n.row.Data)))
	}
	if data.Execution == "" {
		data.Execution = domain.ExecutionAutomatic
	}
	n.row.Data = append(n.row.Data, data)
	return n
}

func (n *NodeBuilder) last() *domain.RowData {
	if n.row == nil || len(n.row.Data) == 0 {
		return nil
	}
	return &n.row.Data[len(n.row.Data)-1]
}

// For gives the last line a fixed duration.
func (n *NodeBuilder) For(d time.Duration) *NodeBuilder {
	if l := n.last(); l != nil {
		l.DurationMode = domain.DurationDefault
		l.Duration = d
	}
	return n
}

// Voice attaches an audio cue to the last line.
func (n *NodeBuilder) Voice(name string, d time.Duration) *NodeBuilder {
	if l := n.last(); l != nil {
		l.Audio = &domain.AudioCue{Name: name, Duration: d}
		if l.DurationMode == domain.DurationAutoCalculate {
			l.DurationMode = domain.DurationDefault
		}
	}
	return n
}

// AwaitInput makes the last line wait for a skip once it finished.
func (n *NodeBuilder) AwaitInput() *NodeBuilder {
	if l := n.last(); l != nil {
		l.Execution = domain.ExecutionAwaitInput
	}
	return n
}

// Stopping makes the last line end the node.
func (n *NodeBuilder) Stopping() *NodeBuilder {
	if l := n.last(); l != nil {
		l.Execution = domain.ExecutionStopping
	}
	return n
}

// Tags sets the participant tags the row is compatible with.
func (n *NodeBuilder) Tags(tags ...string) *NodeBuilder {
	if n.row != nil {
		n.row.CompatibleTags = append(n.row.CompatibleTags, tags...)
	}
	return n
}

// Title sets the display title of the node and its row.
func (n *NodeBuilder) Title(title string) *NodeBuilder {
	n.node.Title = title
	if n.row != nil {
		n.row.Title = title
	}
	return n
}

// Go adds children in the given order.
func (n *NodeBuilder) Go(targets ...string) *NodeBuilder {
	n.children = append(n.children, targets...)
	return n
}

// Decorate attaches a node decorator.
func (n *NodeBuilder) Decorate(typ string, params map[string]any) *NodeBuilder {
	n.node.Decorators = append(n.node.Decorators, domain.DecoratorSpec{Type: typ, Params: params})
	return n
}

// OnlyFirstTime is shorthand for the only_first_time decorator.
func (n *NodeBuilder) OnlyFirstTime() *NodeBuilder {
	return n.Decorate("only_first_time", nil)
}

// Manual stops the node from being selected automatically.
func (n *NodeBuilder) Manual() *NodeBuilder {
	n.node.AutoStarts = false
	return n
}

// OwnDecoratorsOnly stops the node from inheriting graph decorators.
func (n *NodeBuilder) OwnDecoratorsOnly() *NodeBuilder {
	n.node.InheritGraphDecorators = false
	return n
}

// At sets the horizontal authoring position used to order siblings.
func (n *NodeBuilder) At(x float64) *NodeBuilder {
	n.node.Position = x
	return n
}

// Node returns the underlying domain.Node.
// This is primarily used by the Builder, but exposed for advanced usage.
func (n *NodeBuilder) Node() *domain.Node {
	return n.node
}
