package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSessionNotFound is returned when a session ID cannot be found in the store.
	ErrSessionNotFound = errors.New("session not found")
	// ErrGraphNotFound is returned when a loader has no graph under the requested name.
	ErrGraphNotFound = errors.New("graph not found")
	// ErrNodeNotFound is returned when a GUID lookup misses.
	ErrNodeNotFound = errors.New("node not found")
	// ErrRowNotFound is returned when a (table, key) pair does not resolve.
	ErrRowNotFound = errors.New("row not found")
	// ErrInvalidContext is returned when a pipeline stage runs without a valid context.
	ErrInvalidContext = errors.New("invalid dialogue context")
	// ErrManagerActive is returned when a start is requested during a session.
	ErrManagerActive = errors.New("dialogue manager already active")
	// ErrNotAuthority is returned when a peer attempts a local mutation.
	ErrNotAuthority = errors.New("not the session authority")
	// ErrInvalidParticipant is returned when a participant is missing or refuses to take part.
	ErrInvalidParticipant = errors.New("invalid participant")
	// ErrCannotStart is returned when neither the saved node nor the graph offers a start point.
	ErrCannotStart = errors.New("dialogue cannot start")
	// ErrRetryExhausted is returned when a peer stage gave up waiting for a context.
	ErrRetryExhausted = errors.New("retry limit reached")
	// ErrInvalidNode is returned for nodes without identity.
	ErrInvalidNode = errors.New("invalid node")
	// ErrDuplicateGUID is returned when two nodes share a GUID.
	ErrDuplicateGUID = errors.New("duplicate node guid")
	// ErrStartExists is returned when a second Start node is added.
	ErrStartExists = errors.New("graph already has a start node")
	// ErrStartNotRemovable is returned when removing the Start node.
	ErrStartNotRemovable = errors.New("start node cannot be removed")
)

// DialogueError is a failure raised at a pipeline stage. Its message is what
// OnDialogueFailed carries.
type DialogueError struct {
	Stage string
	Err   error
}

func (e *DialogueError) Error() string {
	return fmt.Sprintf("[%s] %v", e.Stage, e.Err)
}

func (e *DialogueError) Unwrap() error {
	return e.Err
}

// StageError wraps err as a failure of stage.
func StageError(stage string, err error) *DialogueError {
	return &DialogueError{Stage: stage, Err: err}
}

// ValidationError is a single authoring-time finding.
type ValidationError struct {
	Node   GUID   // NilGUID for graph-level findings
	Title  string // node title or graph name
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Title == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Title, e.Reason)
}

// AggregateError represents multiple failures found in one pass.
type AggregateError struct {
	Errors []error
}

func (e *AggregateError) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d errors:\n", len(e.Errors))
	for i, err := range e.Errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// Unwrap exposes the collected errors to errors.Is and errors.As.
func (e *AggregateError) Unwrap() []error {
	return e.Errors
}

// Add appends err if it is not nil.
func (e *AggregateError) Add(err error) {
	if err != nil {
		e.Errors = append(e.Errors, err)
	}
}

// ErrOrNil returns e if it holds any error, nil otherwise.
func (e *AggregateError) ErrOrNil() error {
	if e == nil || len(e.Errors) == 0 {
		return nil
	}
	return e
}

// Errors returns all collected errors if err is an AggregateError.
// Otherwise it returns nil.
func Errors(err error) []error {
	var aggr *AggregateError
	if errors.As(err, &aggr) {
		return aggr.Errors
	}
	return nil
}
