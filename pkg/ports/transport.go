package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// RequestKind names a mutation a peer asks the authority to perform.
type RequestKind string

const (
	RequestStart    RequestKind = "start"
	RequestClose    RequestKind = "close"
	RequestSelect   RequestKind = "select"
	RequestSkip     RequestKind = "skip"
	RequestSetState RequestKind = "set_state"
)

// Request is the peer to authority message. Only the fields relevant to Kind are set.
type Request struct {
	SessionID    string              `json:"session_id"`
	Kind         RequestKind         `json:"kind"`
	Node         domain.GUID         `json:"node,omitempty"`
	State        domain.ManagerState `json:"state,omitempty"`
	Graph        string              `json:"graph,omitempty"`
	Initiator    string              `json:"initiator,omitempty"`
	Participants []string            `json:"participants,omitempty"`
}

// Transport links an authority with its peers. Implementations deliver each
// snapshot atomically; receivers apply the highest sequence they have seen.
type Transport interface {
	// SendRequest delivers a mutation request to the authority.
	SendRequest(ctx context.Context, req Request) error
	// Requests returns the stream the authority consumes.
	Requests(ctx context.Context) (<-chan Request, error)
	// Broadcast mirrors a snapshot to every peer of its session.
	Broadcast(ctx context.Context, snapshot domain.Snapshot) error
	// Snapshots returns the stream a peer consumes for sessionID.
	Snapshots(ctx context.Context, sessionID string) (<-chan domain.Snapshot, error)
}
