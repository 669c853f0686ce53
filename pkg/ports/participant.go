package ports

import (
	"context"

	"github.com/aretw0/parley/pkg/domain"
)

// Participant is implemented by every entity that can take part in a dialogue.
// The engine never owns a participant; it only calls back into it.
type Participant interface {
	// ID is the stable identifier used in the context participant set.
	ID() string
	CanParticipate() bool
	CanStart() bool
	// OwningActor names the simulation object the participant belongs to.
	OwningActor() string

	DialogueGraph() string
	SetDialogueGraph(name string)

	// SavedStartingNode returns the node a previous session chose as its
	// resume point, or domain.NilGUID.
	SavedStartingNode() domain.GUID
	SaveStartingNode(node domain.GUID)
	SaveTraversedPath(path []domain.TraversedNode)

	// Tag is matched against domain.Row.CompatibleTags.
	Tag() string

	Initialize(ctx context.Context, manager string)
	PlayVoice(ctx context.Context, cue domain.AudioCue)
	SkipVoice(ctx context.Context, cue domain.AudioCue)

	State() domain.ParticipantState
	SetState(state domain.ParticipantState)
	DefaultState() domain.ParticipantState
	SetDefaultState(state domain.ParticipantState)

	ProcessCommand(ctx context.Context, command string, payload map[string]any)
}
