// Package validator lints authored dialogue graphs. It reports every
// violation found in one pass instead of stopping at the first one.
package validator

import (
	"context"
	"fmt"

	"github.com/aretw0/parley/pkg/decorator"
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Validator checks graphs against the structural rules of each node kind.
type Validator struct {
	registry *decorator.Registry
	rows     ports.RowResolver
}

// Option configures the Validator.
type Option func(*Validator)

// WithRegistry sets the registry decorator specs are checked against.
func WithRegistry(r *decorator.Registry) Option {
	return func(v *Validator) {
		v.registry = r
	}
}

// WithRows also checks that every content node resolves a playable row.
func WithRows(rows ports.RowResolver) Option {
	return func(v *Validator) {
		v.rows = rows
	}
}

// New creates a Validator using the built-in decorators.
func New(opts ...Option) *Validator {
	v := &Validator{registry: decorator.DefaultRegistry()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateGraph lints g with the default Validator.
func ValidateGraph(g *domain.Graph) error {
	return New().Validate(context.Background(), g)
}

// Validate returns a *domain.AggregateError of *domain.ValidationError, or nil.
func (v *Validator) Validate(ctx context.Context, g *domain.Graph) error {
	var errs domain.AggregateError
	if g == nil {
		errs.Add(&domain.ValidationError{Reason: "graph is nil"})
		return errs.ErrOrNil()
	}
	graphFinding := func(format string, args ...any) {
		errs.Add(&domain.ValidationError{Title: g.Name, Reason: fmt.Sprintf(format, args...)})
	}

	start := g.Start()
	switch {
	case start == nil:
		graphFinding("has no Start node")
	case len(start.Children) != 1:
		graphFinding("Start node must have exactly one child, has %d", len(start.Children))
	}
	v.checkDecorators(g.Decorators, decorator.Owner{Graph: g}, "Graph", graphFinding)

	isolated := make(map[domain.GUID]bool)
	for _, n := range g.Nodes {
		finding := func(format string, args ...any) {
			errs.Add(&domain.ValidationError{Node: n.GUID, Title: n.Label(), Reason: fmt.Sprintf(format, args...)})
		}
		if !n.Kind.Valid() {
			finding("has unknown kind %q", n.Kind)
			continue
		}
		if n.Kind != domain.KindStart && len(n.Parents) == 0 && len(n.Children) == 0 && n.ReturnTarget == domain.NilGUID {
			isolated[n.GUID] = true
			finding("has no connections")
		}
		v.checkNode(ctx, g, n, finding)
		v.checkDecorators(n.Decorators, decorator.Owner{Graph: g, Node: n}, "Node", finding)
	}

	if start != nil {
		reached := reachable(g, start)
		for _, n := range g.Nodes {
			if !reached[n.GUID] && !isolated[n.GUID] {
				errs.Add(&domain.ValidationError{Node: n.GUID, Title: n.Label(), Reason: "is unreachable from Start"})
			}
		}
	}
	for _, n := range cycles(g) {
		errs.Add(&domain.ValidationError{Node: n.GUID, Title: n.Label(), Reason: "is part of a structural cycle; use a ReturnTo node to loop"})
	}
	return errs.ErrOrNil()
}

func (v *Validator) checkNode(ctx context.Context, g *domain.Graph, n *domain.Node, finding func(string, ...any)) {
	caps := n.Kind.Capabilities()

	if n.Kind != domain.KindStart && caps.AllowsInputs && len(n.Parents) == 0 {
		finding("requires inputs")
	}
	for _, id := range n.Parents {
		p := g.Node(id)
		if p == nil {
			finding("has a dangling parent %s", id)
			continue
		}
		if !n.Kind.AcceptsInputFrom(p.Kind) {
			finding("does not accept input from %s node %s", p.Kind, p.Label())
		}
	}
	if !caps.AllowsOutputs && len(n.Children) > 0 {
		finding("does not allow outputs")
	}
	if caps.MaxChildren > 0 && len(n.Children) > caps.MaxChildren {
		finding("allows at most %d children, has %d", caps.MaxChildren, len(n.Children))
	}
	for _, id := range n.Children {
		if g.Node(id) == nil {
			finding("has a dangling child %s", id)
		}
	}

	switch n.Kind {
	case domain.KindLead, domain.KindAnswer:
		v.checkContent(ctx, n, finding)
	case domain.KindDelay:
		if n.Delay <= 0 {
			finding("delay must be greater than zero")
		}
	case domain.KindReturnTo:
		switch {
		case n.ReturnTarget == domain.NilGUID:
			finding("has no return target")
		case g.Node(n.ReturnTarget) == nil:
			finding("return target %s not found", n.ReturnTarget)
		case g.Node(n.ReturnTarget).Kind == domain.KindStart:
			finding("cannot return to the Start node")
		}
		for _, id := range n.Parents {
			if p := g.Node(id); p != nil && len(p.Children) > 1 {
				finding("must be the only child of %s", p.Label())
			}
		}
	}
}

func (v *Validator) checkContent(ctx context.Context, n *domain.Node, finding func(string, ...any)) {
	if n.RowTable == "" || n.RowKey == "" {
		finding("has no dialogue row")
		return
	}
	if v.rows == nil {
		return
	}
	row, err := v.rows.Row(ctx, n.RowTable, n.RowKey)
	if err != nil {
		finding("row %s/%s: %v", n.RowTable, n.RowKey, err)
		return
	}
	if !row.Valid() {
		finding("row %s/%s is not playable", n.RowTable, n.RowKey)
		return
	}
	for i, d := range row.Data {
		if !d.Valid() {
			finding("row %s/%s entry %d has no text", n.RowTable, n.RowKey, i)
		}
	}
}

// checkDecorators builds every spec, runs its own validation and counts
// non-stackable duplicates. Each duplicated type is reported once.
func (v *Validator) checkDecorators(specs []domain.DecoratorSpec, owner decorator.Owner, scope string, finding func(string, ...any)) {
	counts := make(map[string]int)
	var order []string
	for i, spec := range specs {
		d, err := v.registry.Build(spec)
		if err != nil {
			finding("invalid decorator at index %d: %v", i, err)
			continue
		}
		for _, msg := range d.Validate(owner) {
			finding("decorator %s at index %d: %s", d.Type(), i, msg)
		}
		if decorator.IsStackable(d) {
			continue
		}
		if counts[d.Type()] == 0 {
			order = append(order, d.Type())
		}
		counts[d.Type()]++
	}
	for _, typ := range order {
		if n := counts[typ]; n > 1 {
			finding("has %s Decorator %s %dx times", scope, typ, n)
		}
	}
}

// reachable follows structural children and ReturnTo jumps from start.
func reachable(g *domain.Graph, start *domain.Node) map[domain.GUID]bool {
	seen := map[domain.GUID]bool{start.GUID: true}
	queue := []*domain.Node{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		next := cur.Children
		if cur.ReturnTarget != domain.NilGUID {
			next = append(append([]domain.GUID(nil), next...), cur.ReturnTarget)
		}
		for _, id := range next {
			if seen[id] {
				continue
			}
			seen[id] = true
			if n := g.Node(id); n != nil {
				queue = append(queue, n)
			}
		}
	}
	return seen
}

// cycles returns the nodes that close a structural cycle, in authored order.
// ReturnTo jumps are not structural and never count.
func cycles(g *domain.Graph) []*domain.Node {
	const (
		white = iota
		grey
		black
	)
	color := make(map[domain.GUID]int, len(g.Nodes))
	closing := make(map[domain.GUID]bool)

	var visit func(n *domain.Node)
	visit = func(n *domain.Node) {
		color[n.GUID] = grey
		for _, c := range g.Children(n) {
			switch color[c.GUID] {
			case white:
				visit(c)
			case grey:
				closing[c.GUID] = true
			}
		}
		color[n.GUID] = black
	}
	for _, n := range g.Nodes {
		if color[n.GUID] == white {
			visit(n)
		}
	}

	var out []*domain.Node
	for _, n := range g.Nodes {
		if closing[n.GUID] {
			out = append(out, n)
		}
	}
	return out
}
