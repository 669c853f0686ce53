package decorator

import (
	"fmt"
	"sort"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/mitchellh/mapstructure"
)

// Factory creates a zero-valued decorator whose exported fields receive the
// spec params.
type Factory func() Decorator

// Registry maps decorator type names to factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates a new empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// DefaultRegistry returns a registry holding every built-in decorator.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(TypeOnlyFirstTime, func() Decorator { return &OnlyFirstTime{} })
	r.Register(TypeOverrideDialogue, func() Decorator { return &OverrideDialogue{} })
	r.Register(TypeOverrideOnlyFirstTime, func() Decorator { return &OverrideOnlyFirstTime{} })
	r.Register(TypeSwapParticipants, func() Decorator { return &SwapParticipants{} })
	r.Register(TypeSelectRandomRow, func() Decorator { return &SelectRandomRow{} })
	r.Register(TypeSaveNodeAsStart, func() Decorator { return &SaveNodeAsStart{} })
	r.Register(TypeSendCommand, func() Decorator { return &SendCommand{} })
	r.Register(TypeOverrideParticipants, func() Decorator { return &OverrideParticipants{} })
	return r
}

// Register adds a factory. An existing type is overwritten.
func (r *Registry) Register(typ string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[typ] = f
}

// Types returns the registered type names, sorted.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for t := range r.factories {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build creates a decorator from its authored spec. Params are decoded onto
// the decorator with mapstructure; unknown params are rejected.
func (r *Registry) Build(spec domain.DecoratorSpec) (Decorator, error) {
	r.mu.RLock()
	f, ok := r.factories[spec.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown decorator type %q", spec.Type)
	}

	d := f()
	if len(spec.Params) == 0 {
		return d, nil
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           d,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, fmt.Errorf("decorator %s: %w", spec.Type, err)
	}
	if err := dec.Decode(spec.Params); err != nil {
		return nil, fmt.Errorf("decorator %s params: %w", spec.Type, err)
	}
	return d, nil
}
