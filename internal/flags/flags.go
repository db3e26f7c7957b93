// Package flags owns the normalized flag schema: one flag per reported target,
// with an optional state, assignee, note thread and change history.
//
// Two implementations of Service are provided. Store writes directly to the
// database through gorm; HTTPClient calls a remote flags API.
package flags

import (
	"context"
	"fmt"
	"slices"

	"github.com/tphakala/flagmigrate/internal/errors"
)

// TypePost is the only target type produced by the legacy migration.
const TypePost = "post"

// State is the moderation state of a flag.
type State string

const (
	StateOpen     State = "open"
	StateWIP      State = "wip"
	StateResolved State = "resolved"
	StateRejected State = "rejected"
)

var validStates = []State{StateOpen, StateWIP, StateResolved, StateRejected}

// Valid reports whether s is a known state.
func (s State) Valid() bool {
	return slices.Contains(validStates, s)
}

var (
	// ErrAlreadyFlagged is returned by Create when a flag already exists for the target.
	ErrAlreadyFlagged = errors.NewStd("target already flagged")

	// ErrFlagNotFound is returned for operations on an unknown flag id.
	ErrFlagNotFound = errors.NewStd("flag not found")

	// ErrValidation marks input rejected by the flags service.
	ErrValidation = errors.NewStd("flag validation failed")

	// ErrInvalidState is returned when an update names an unknown state.
	ErrInvalidState = fmt.Errorf("%w: invalid flag state", ErrValidation)
)

// Patch holds the fields an update may change. Empty strings leave a field untouched.
type Patch struct {
	State    State  `json:"state,omitempty"`
	Assignee string `json:"assignee,omitempty"`
	// Datetime is the change time in milliseconds since epoch.
	Datetime int64 `json:"datetime"`
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.State == "" && p.Assignee == ""
}

// Service is the flags domain contract used by the migration.
type Service interface {
	// Create records a new flag. It returns ErrAlreadyFlagged when the
	// (targetType, targetID) pair already has a flag.
	Create(ctx context.Context, targetType, targetID, reporter, reason string, datetime int64) (*Flag, error)
	// Update applies patch to the flag, attributed to actor.
	Update(ctx context.Context, flagID int64, actor string, patch Patch) error
	// AppendNote adds a note to the flag's thread.
	AppendNote(ctx context.Context, flagID int64, actor, content string, datetime int64) error
}

func validateCreate(targetType, targetID, reporter string, datetime int64) error {
	switch {
	case targetType != TypePost:
		return fmt.Errorf("%w: unsupported target type %q", ErrValidation, targetType)
	case targetID == "":
		return fmt.Errorf("%w: empty target id", ErrValidation)
	case reporter == "":
		return fmt.Errorf("%w: empty reporter", ErrValidation)
	case datetime <= 0:
		return fmt.Errorf("%w: invalid datetime %d", ErrValidation, datetime)
	}
	return nil
}

func validatePatch(patch Patch) error {
	if patch.State != "" && !patch.State.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidState, patch.State)
	}
	return nil
}
