// Package websocket carries replication traffic over gorilla/websocket.
// The Hub runs next to the authority; each peer dials it with a Client.
package websocket

import (
	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// MessageType tags the payload of a Message.
type MessageType string

const (
	MessageRequest  MessageType = "request"
	MessageSnapshot MessageType = "snapshot"
)

// Message is the JSON envelope of every frame.
type Message struct {
	Type     MessageType      `json:"type"`
	Request  *ports.Request   `json:"request,omitempty"`
	Snapshot *domain.Snapshot `json:"snapshot,omitempty"`
}

// SessionParam is the query parameter naming the session a peer follows.
const SessionParam = "session"
