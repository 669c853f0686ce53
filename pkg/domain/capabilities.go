package domain

import "time"

// NodeKind tags a Node with its variant.
type NodeKind string

const (
	KindStart        NodeKind = "start"
	KindLead         NodeKind = "lead"
	KindAnswer       NodeKind = "answer"
	KindDelay        NodeKind = "delay"
	KindReturnTo     NodeKind = "return_to"
	KindComplete     NodeKind = "complete"
	KindAutoComplete NodeKind = "auto_complete"
)

const (
	// DefaultDelayDuration is used by Delay nodes authored without a duration.
	DefaultDelayDuration = 3 * time.Second
	// DefaultReturnDelay is the pause a ReturnTo node takes before jumping.
	DefaultReturnDelay = 100 * time.Millisecond
)

// Capabilities describes the fixed behaviour of a NodeKind. The runtime
// dispatches on the kind and consults this table instead of relying on a
// type hierarchy.
type Capabilities struct {
	Category string
	// CarriesContent marks Lead and Answer nodes, which resolve a Row.
	CarriesContent bool
	// AutoStarts is the default for Node.AutoStarts.
	AutoStarts bool
	// InheritGraphDecorators is the default for Node.InheritGraphDecorators.
	InheritGraphDecorators bool
	// MaxChildren caps the child list. Zero means unbounded.
	MaxChildren   int
	AllowsInputs  bool
	AllowsOutputs bool
	// AllowedInputs lists the kinds that may precede this one. Nil allows any kind.
	AllowedInputs []NodeKind
	// ChildFilter lists kinds this node never offers as a next node.
	ChildFilter []NodeKind
	// Terminal kinds close the session once reached.
	Terminal bool
	// Removable is false for nodes the graph creates implicitly.
	Removable bool
}

var capabilities = map[NodeKind]Capabilities{
	KindStart: {
		Category:               "Start",
		InheritGraphDecorators: true,
		MaxChildren:            1,
		AllowsOutputs:          true,
	},
	KindLead: {
		Category:               "Branch",
		CarriesContent:         true,
		AutoStarts:             true,
		InheritGraphDecorators: true,
		AllowsInputs:           true,
		AllowsOutputs:          true,
		AllowedInputs:          []NodeKind{KindStart, KindLead, KindAnswer, KindDelay},
		Removable:              true,
	},
	KindAnswer: {
		Category:               "Branch",
		CarriesContent:         true,
		InheritGraphDecorators: true,
		MaxChildren:            1,
		AllowsInputs:           true,
		AllowsOutputs:          true,
		AllowedInputs:          []NodeKind{KindLead, KindDelay},
		Removable:              true,
	},
	KindDelay: {
		Category:               "Utility",
		AutoStarts:             true,
		InheritGraphDecorators: true,
		AllowsInputs:           true,
		AllowsOutputs:          true,
		Removable:              true,
	},
	KindReturnTo: {
		Category:     "Utility",
		AutoStarts:   true,
		AllowsInputs: true,
		ChildFilter:  []NodeKind{KindReturnTo, KindComplete, KindStart},
		Removable:    true,
	},
	KindComplete: {
		Category:               "Terminal",
		AutoStarts:             true,
		InheritGraphDecorators: true,
		AllowsInputs:           true,
		Terminal:               true,
		Removable:              true,
	},
	KindAutoComplete: {
		Category:               "Terminal",
		AutoStarts:             true,
		InheritGraphDecorators: true,
		AllowsInputs:           true,
		AllowsOutputs:          true,
		Terminal:               true,
		Removable:              true,
	},
}

// Capabilities returns the behaviour table entry for k. Unknown kinds get a
// zero value, which neither starts nor carries content.
func (k NodeKind) Capabilities() Capabilities {
	return capabilities[k]
}

// Valid reports whether k is a known kind.
func (k NodeKind) Valid() bool {
	_, ok := capabilities[k]
	return ok
}

// Kinds returns every known NodeKind in a fixed order.
func Kinds() []NodeKind {
	return []NodeKind{KindStart, KindLead, KindAnswer, KindDelay, KindReturnTo, KindComplete, KindAutoComplete}
}

// AcceptsInputFrom reports whether a node of kind k may follow a node of kind parent.
func (k NodeKind) AcceptsInputFrom(parent NodeKind) bool {
	caps := k.Capabilities()
	if !caps.AllowsInputs {
		return false
	}
	if caps.AllowedInputs == nil {
		return true
	}
	return containsKind(caps.AllowedInputs, parent)
}

// Filters reports whether k refuses to offer child as a next node.
func (k NodeKind) Filters(child NodeKind) bool {
	return containsKind(k.Capabilities().ChildFilter, child)
}

func containsKind(kinds []NodeKind, k NodeKind) bool {
	for _, candidate := range kinds {
		if candidate == k {
			return true
		}
	}
	return false
}
