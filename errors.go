package vgraph

import (
	"errors"
	"fmt"
)

// Errors returned by graph operations.
var (
	// ErrInvalidTransition is wrapped by every *StateError.
	ErrInvalidTransition = errors.New("vgraph: invalid state transition")

	// ErrSlotOccupied is returned when a mix slot's zIndex is already in use.
	ErrSlotOccupied = errors.New("vgraph: mix slot already occupied")

	// ErrInputOccupied is returned when connecting to a node that already
	// has another input.
	ErrInputOccupied = errors.New("vgraph: input already connected")

	// ErrLayoutRequired is returned when connecting to a mix without a layout.
	ErrLayoutRequired = errors.New("vgraph: mix input requires a layout")

	// ErrForeignNode is returned when connecting nodes of different contexts.
	ErrForeignNode = errors.New("vgraph: node belongs to another context")

	// ErrNodeClosed is returned when connecting to or from a closed node.
	ErrNodeClosed = errors.New("vgraph: node closed")

	// ErrContextUnavailable is returned when a context has no surface.
	ErrContextUnavailable = errors.New("vgraph: context unavailable")

	// ErrTrackMuted is reported when an output track goes silent.
	ErrTrackMuted = errors.New("vgraph: video track muted")

	// ErrInvalidOptions is wrapped by NodeOptions.Validate failures.
	ErrInvalidOptions = errors.New("vgraph: invalid node options")
)

// StateError reports an operation attempted from a state that does not
// allow it.
type StateError struct {
	Entity string
	Op     string
	From   State
}

func (e *StateError) Error() string {
	return fmt.Sprintf("vgraph: %s: cannot %s from state %s", e.Entity, e.Op, e.From)
}

// Unwrap returns ErrInvalidTransition.
func (e *StateError) Unwrap() error { return ErrInvalidTransition }
