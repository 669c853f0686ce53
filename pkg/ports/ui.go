package ports

import "github.com/aretw0/parley/pkg/domain"

// UserInterface is a dialogue widget. Execute receives a command from the
// fixed domain.UICommand vocabulary and a read-only copy of the context.
type UserInterface interface {
	ID() string
	Execute(command domain.UICommand, c *domain.Context)
}
