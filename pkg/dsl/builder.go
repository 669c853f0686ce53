package dsl

import (
	"fmt"
	"time"

	"github.com/aretw0/parley/pkg/adapters/memory"
	"github.com/aretw0/parley/pkg/domain"
)

// Builder manages the graph construction.
type Builder struct {
	name       string
	table      string
	start      string
	order      []*NodeBuilder
	nodes      map[string]*NodeBuilder
	decorators []domain.DecoratorSpec
}

// New creates a builder for the graph called name. Rows are stored in a
// table of the same name.
func New(name string) *Builder {
	return &Builder{
		name:  name,
		table: name,
		nodes: make(map[string]*NodeBuilder),
	}
}

// Table overrides the row table name.
func (b *Builder) Table(name string) *Builder {
	b.table = name
	return b
}

// StartAt sets the first node after Start. It defaults to the first node added.
func (b *Builder) StartAt(name string) *Builder {
	b.start = name
	return b
}

// Decorate attaches a graph decorator inherited by nodes that accept them.
func (b *Builder) Decorate(typ string, params map[string]any) *Builder {
	b.decorators = append(b.decorators, domain.DecoratorSpec{Type: typ, Params: params})
	return b
}

// Lead adds a content node that auto-starts.
func (b *Builder) Lead(name string) *NodeBuilder {
	return b.add(domain.KindLead, name)
}

// Answer adds a content node offered as a selectable option.
func (b *Builder) Answer(name string) *NodeBuilder {
	return b.add(domain.KindAnswer, name)
}

// Delay adds a node that pauses for d before continuing.
func (b *Builder) Delay(name string, d time.Duration) *NodeBuilder {
	nb := b.add(domain.KindDelay, name)
	nb.node.Delay = d
	return nb
}

// ReturnTo adds a node that jumps back to target.
func (b *Builder) ReturnTo(name, target string) *NodeBuilder {
	nb := b.add(domain.KindReturnTo, name)
	nb.returnTo = target
	return nb
}

// Complete adds a terminal node.
func (b *Builder) Complete(name string) *NodeBuilder {
	return b.add(domain.KindComplete, name)
}

// AutoComplete adds a node that closes the session as soon as it is entered.
func (b *Builder) AutoComplete(name string) *NodeBuilder {
	return b.add(domain.KindAutoComplete, name)
}

// add creates a node. If the name already exists, it returns the existing builder.
func (b *Builder) add(kind domain.NodeKind, name string) *NodeBuilder {
	if nb, ok := b.nodes[name]; ok {
		return nb
	}
	n := domain.NewNode(kind, name)
	n.GUID = domain.GUIDFromName(b.name + "/" + name)
	nb := &NodeBuilder{node: n}
	if n.CarriesContent() {
		nb.row = &domain.Row{GUID: domain.GUIDFromName(b.table + "/" + name)}
	}
	b.nodes[name] = nb
	b.order = append(b.order, nb)
	return nb
}

// Build resolves every name reference and returns the graph with its rows.
// Unknown references are collected into one *domain.AggregateError.
func (b *Builder) Build() (*domain.Graph, *memory.Rows, error) {
	g := domain.NewGraph(b.name)
	g.Decorators = append(g.Decorators, b.decorators...)
	rows := memory.NewRows()
	var errs domain.AggregateError

	for _, nb := range b.order {
		if nb.row != nil {
			nb.node.RowTable, nb.node.RowKey = b.table, nb.node.Name
			rows.Put(b.table, nb.node.Name, nb.row)
		}
		if err := g.AddNode(nb.node); err != nil {
			errs.Add(err)
		}
	}

	first := b.start
	if first == "" && len(b.order) > 0 {
		first = b.order[0].node.Name
	}
	if target, ok := b.nodes[first]; ok {
		errs.Add(g.Connect(g.StartNode, target.node.GUID, domain.Edge{}))
	} else {
		errs.Add(fmt.Errorf("start: unknown node %q: %w", first, domain.ErrNodeNotFound))
	}

	for _, nb := range b.order {
		for _, name := range nb.children {
			child, ok := b.nodes[name]
			if !ok {
				errs.Add(fmt.Errorf("%s: unknown child %q: %w", nb.node.Name, name, domain.ErrNodeNotFound))
				continue
			}
			errs.Add(g.Connect(nb.node.GUID, child.node.GUID, domain.Edge{}))
		}
		if nb.returnTo != "" {
			target, ok := b.nodes[nb.returnTo]
			if !ok {
				errs.Add(fmt.Errorf("%s: unknown return target %q: %w", nb.node.Name, nb.returnTo, domain.ErrNodeNotFound))
				continue
			}
			nb.node.ReturnTarget = target.node.GUID
		}
	}

	if err := errs.ErrOrNil(); err != nil {
		return nil, nil, err
	}
	domain.AssignExecutionOrder(g)
	return g, rows, nil
}

// MustBuild is Build for definitions known to be valid. It panics on error.
func (b *Builder) MustBuild() (*domain.Graph, *memory.Rows) {
	g, rows, err := b.Build()
	if err != nil {
		panic(fmt.Sprintf("dsl: %v", err))
	}
	return g, rows
}
