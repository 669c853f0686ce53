package memory

import (
	"context"
	"sync"

	"github.com/aretw0/parley/pkg/domain"
)

// Command is one call recorded by Participant.ProcessCommand.
type Command struct {
	Name    string
	Payload map[string]any
}

// Participant is an in-memory ports.Participant that records every callback.
// It is used by tests, the CLI player and the example server.
type Participant struct {
	mu sync.Mutex

	id             string
	tag            string
	actor          string
	canParticipate bool
	canStart       bool
	graph          string
	savedStart     domain.GUID
	state          domain.ParticipantState
	defaultState   domain.ParticipantState
	manager        string

	traversed []domain.TraversedNode
	voices    []domain.AudioCue
	skipped   []domain.AudioCue
	commands  []Command
}

// ParticipantOption configures a Participant.
type ParticipantOption func(*Participant)

// WithTag sets the tag matched against row compatibility tags.
func WithTag(tag string) ParticipantOption {
	return func(p *Participant) { p.tag = tag }
}

// WithGraph sets the dialogue graph the participant carries.
func WithGraph(name string) ParticipantOption {
	return func(p *Participant) { p.graph = name }
}

// WithSavedStart sets a previously saved starting node.
func WithSavedStart(node domain.GUID) ParticipantOption {
	return func(p *Participant) { p.savedStart = node }
}

// Unwilling makes the participant refuse to take part.
func Unwilling() ParticipantOption {
	return func(p *Participant) { p.canParticipate = false }
}

// CannotStart makes the participant refuse to start a dialogue.
func CannotStart() ParticipantOption {
	return func(p *Participant) { p.canStart = false }
}

// NewParticipant creates a willing participant in the Enabled state.
func NewParticipant(id string, opts ...ParticipantOption) *Participant {
	p := &Participant{
		id:             id,
		actor:          id,
		canParticipate: true,
		canStart:       true,
		state:          domain.StateEnabled,
		defaultState:   domain.StateEnabled,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Participant) ID() string          { return p.id }
func (p *Participant) OwningActor() string { return p.actor }
func (p *Participant) Tag() string         { return p.tag }

func (p *Participant) CanParticipate() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canParticipate
}

func (p *Participant) CanStart() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canStart && p.canParticipate
}

func (p *Participant) DialogueGraph() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.graph
}

func (p *Participant) SetDialogueGraph(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.graph = name
}

func (p *Participant) SavedStartingNode() domain.GUID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.savedStart
}

func (p *Participant) SaveStartingNode(node domain.GUID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.savedStart = node
}

func (p *Participant) SaveTraversedPath(path []domain.TraversedNode) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.traversed = append([]domain.TraversedNode(nil), path...)
}

func (p *Participant) Initialize(_ context.Context, manager string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.manager = manager
}

func (p *Participant) PlayVoice(_ context.Context, cue domain.AudioCue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voices = append(p.voices, cue)
}

func (p *Participant) SkipVoice(_ context.Context, cue domain.AudioCue) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.skipped = append(p.skipped, cue)
}

func (p *Participant) State() domain.ParticipantState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

func (p *Participant) SetState(state domain.ParticipantState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = state
}

func (p *Participant) DefaultState() domain.ParticipantState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaultState
}

func (p *Participant) SetDefaultState(state domain.ParticipantState) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultState = state
}

func (p *Participant) ProcessCommand(_ context.Context, command string, payload map[string]any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.commands = append(p.commands, Command{Name: command, Payload: payload})
}

// Manager returns the manager name passed to Initialize.
func (p *Participant) Manager() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.manager
}

// TraversedPath returns the path saved on the last close.
func (p *Participant) TraversedPath() []domain.TraversedNode {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.TraversedNode(nil), p.traversed...)
}

// Voices returns every cue played so far.
func (p *Participant) Voices() []domain.AudioCue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.AudioCue(nil), p.voices...)
}

// SkippedVoices returns every cue skipped so far.
func (p *Participant) SkippedVoices() []domain.AudioCue {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.AudioCue(nil), p.skipped...)
}

// Commands returns every command received so far.
func (p *Participant) Commands() []Command {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Command(nil), p.commands...)
}
