package memory

import (
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// UI is a ports.UserInterface that records every command it receives.
type UI struct {
	id string

	mu       sync.Mutex
	commands []domain.UICommand
	last     *domain.Context
}

// NewUI creates a recording UI surface.
func NewUI(id string) *UI {
	return &UI{id: id}
}

func (u *UI) ID() string { return u.id }

// Execute records command together with the context it was issued for.
func (u *UI) Execute(command domain.UICommand, c *domain.Context) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.commands = append(u.commands, command)
	u.last = c
}

// Commands returns the recorded commands in arrival order.
func (u *UI) Commands() []domain.UICommand {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]domain.UICommand(nil), u.commands...)
}

// LastContext returns the context of the last command.
func (u *UI) LastContext() *domain.Context {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.last
}

// Reset forgets every recorded command.
func (u *UI) Reset() {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.commands = nil
	u.last = nil
}
