package models

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateDispute is returned when a trade already has an open dispute.
	ErrDuplicateDispute = errors.New("trade already has an open dispute")

	// ErrStaleSnapshot is returned when a reputation snapshot changed while
	// an evaluation that read it was in flight.
	ErrStaleSnapshot = errors.New("reputation snapshot changed during evaluation")

	// ErrNotFound is returned by repositories when an entity does not exist.
	ErrNotFound = errors.New("not found")
)

// InvalidTransitionError reports an operation that requested a state change
// not legal from the current state. State is left untouched.
type InvalidTransitionError struct {
	Entity string // trade / escrow / dispute
	From   string
	To     string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid %s transition from %s to %s", e.Entity, e.From, e.To)
}

func NewInvalidTransition(entity, from, to string) error {
	return &InvalidTransitionError{Entity: entity, From: from, To: to}
}

// IsInvalidTransition reports whether err is an InvalidTransitionError.
func IsInvalidTransition(err error) bool {
	var ite *InvalidTransitionError
	return errors.As(err, &ite)
}
