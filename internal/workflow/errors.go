package workflow

import "errors"

// Transition errors.
var (
	ErrInvalidTransition    = errors.New("invalid phase transition")
	ErrChecklistIncomplete  = errors.New("checklist incomplete")
	ErrVerificationFailed   = errors.New("verification failed")
	ErrRetryBudgetExhausted = errors.New("retry budget exhausted")
)

// Change set lifecycle errors.
var (
	ErrChangeSetAlreadyOpen = errors.New("a change set is already open")
	ErrNoOpenChangeSet      = errors.New("no open change set")
	ErrInvalidKind          = errors.New("invalid change kind")
)

// Validation errors.
var (
	ErrEmptyNote = errors.New("note text is required")
	ErrNoSession = errors.New("no active session")
)
