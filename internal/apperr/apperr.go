// Package apperr holds the error taxonomy shared by the review scheduler,
// the lesson state machine and the transports above them.
package apperr

import (
	"errors"
	"fmt"
)

// NotFoundError reports a referenced card, deck, lesson or item that does not exist
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.ID)
}

// InvalidStateError reports a transition attempted from a state that does not allow it
type InvalidStateError struct {
	Transition string
	State      string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s while %s", e.Transition, e.State)
}

// CollaboratorError reports a failed or timed out call to an external service
type CollaboratorError struct {
	Collaborator string
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s failed", e.Collaborator, e.Op)
	}
	return fmt.Sprintf("%s: %s failed: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error { return e.Err }

// ValidationError reports malformed input
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid input: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func InvalidState(transition, state string) error {
	return &InvalidStateError{Transition: transition, State: state}
}

func Collaborator(name, op string, err error) error {
	return &CollaboratorError{Collaborator: name, Op: op, Err: err}
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsCollaborator(err error) bool {
	var target *CollaboratorError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}
