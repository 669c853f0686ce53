package domain

import (
	"fmt"
	"strings"
)

// ManagerState is the lifecycle state of a dialogue manager.
type ManagerState string

const (
	StateDisabled ManagerState = "disabled"
	StateEnabled  ManagerState = "enabled"
	StateActive   ManagerState = "active"
)

// ParticipantState uses the same three states as the manager.
type ParticipantState = ManagerState

// Valid reports whether s is one of the known states.
func (s ManagerState) Valid() bool {
	switch s {
	case StateDisabled, StateEnabled, StateActive:
		return true
	}
	return false
}

// ParseManagerState parses a case-insensitive state name.
func ParseManagerState(v string) (ManagerState, error) {
	s := ManagerState(strings.ToLower(strings.TrimSpace(v)))
	if !s.Valid() {
		return "", fmt.Errorf("unknown manager state %q", v)
	}
	return s, nil
}

// SessionType records who initiated a session.
type SessionType string

const (
	SessionPlayer      SessionType = "player"
	SessionEnvironment SessionType = "environment"
)
