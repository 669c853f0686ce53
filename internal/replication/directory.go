package replication

import "github.com/aretw0/parley/pkg/ports"

// Directory resolves participant IDs carried by start requests.
type Directory interface {
	Participant(id string) (ports.Participant, bool)
}

// Participants is a Directory over a fixed set.
type Participants map[string]ports.Participant

// NewParticipants indexes ps by ID.
func NewParticipants(ps ...ports.Participant) Participants {
	out := make(Participants, len(ps))
	for _, p := range ps {
		out[p.ID()] = p
	}
	return out
}

func (d Participants) Participant(id string) (ports.Participant, bool) {
	p, ok := d[id]
	return p, ok
}
