package decorator

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Host is the session-side surface a decorator acts on. Decorators only hold
// it as a back-reference; they never own the manager behind it.
type Host interface {
	// DialogueContext returns the live context, or nil outside a session.
	DialogueContext() *domain.Context
	Participant(id string) (ports.Participant, bool)
	Participants() []ports.Participant
	Rows() ports.RowResolver
	Scheduler() ports.Scheduler
	Rand() *rand.Rand
	Logger() *slog.Logger
}

// Owner is what a decorator is attached to. Node is nil for graph decorators.
type Owner struct {
	Graph *domain.Graph
	Node  *domain.Node
}

// Decorator is the behaviour contract. node is the node being considered or
// entered, which for graph decorators differs from the owner.
type Decorator interface {
	Type() string
	Initialize(host Host, owner Owner)
	// Validate returns one message per violation; none means valid.
	Validate(owner Owner) []string
	Evaluate(ctx context.Context, node *domain.Node) bool
	Execute(ctx context.Context, node *domain.Node)
	Cleanup()
}

// Stackable is implemented by decorators that may be attached more than once
// to the same node or graph.
type Stackable interface {
	Stackable() bool
}

// IsStackable reports whether d opts into duplicates.
func IsStackable(d Decorator) bool {
	s, ok := d.(Stackable)
	return ok && s.Stackable()
}

// Base provides the default hooks. Embed it and override what you need.
type Base struct {
	host  Host
	owner Owner
}

func (b *Base) Initialize(host Host, owner Owner) {
	b.host = host
	b.owner = owner
}

func (b *Base) Validate(Owner) []string                     { return nil }
func (b *Base) Evaluate(context.Context, *domain.Node) bool { return true }
func (b *Base) Execute(context.Context, *domain.Node)       {}
func (b *Base) Cleanup()                                    {}

// Host returns the session host, or nil before Initialize.
func (b *Base) Host() Host {
	return b.host
}

// Owner returns what the decorator is attached to.
func (b *Base) Owner() Owner {
	return b.owner
}

// dialogueContext is a nil-safe accessor for the live context.
func (b *Base) dialogueContext() *domain.Context {
	if b.host == nil {
		return nil
	}
	return b.host.DialogueContext()
}
