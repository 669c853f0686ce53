package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/parley/pkg/domain"
	"github.com/aretw0/parley/pkg/ports"
)

// Mask replaces participant IDs hidden by the PII middleware.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks every participant ID
// matching one of patterns before it reaches the store. Masking is one-way:
// a resumed session sees the masked IDs.
func NewPIIMiddleware(patternStrings []string) (Middleware, error) {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, err
		}
		patterns[i] = re
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}, nil
}

func (m *piiMiddleware) Save(ctx context.Context, snapshot domain.Snapshot) error {
	// Copy the participant list so the caller's snapshot keeps the real IDs.
	snapshot.Participants = append([]string(nil), snapshot.Participants...)
	for i, id := range snapshot.Participants {
		snapshot.Participants[i] = m.mask(id)
	}
	snapshot.ActiveParticipant = m.mask(snapshot.ActiveParticipant)
	snapshot.MainParticipant = m.mask(snapshot.MainParticipant)
	snapshot.Player = m.mask(snapshot.Player)
	return m.next.Save(ctx, snapshot)
}

func (m *piiMiddleware) mask(id string) string {
	if id == "" {
		return id
	}
	for _, p := range m.patterns {
		if p.MatchString(id) {
			return Mask
		}
	}
	return id
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (domain.Snapshot, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}
