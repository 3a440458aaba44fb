package live

import "errors"

var (
	// ErrUnauthorized is returned when the actor may not control the wedding's session.
	ErrUnauthorized = errors.New("actor not authorized for wedding")
	// ErrInvalidTransition is returned when the requested status change is not in the transition table.
	ErrInvalidTransition = errors.New("invalid session transition")
	// ErrAlreadyEnded is returned when a wedding's session has ended and can never go live again.
	ErrAlreadyEnded = errors.New("live session already ended")
	// ErrInvalidState is returned when an active session already exists for the wedding.
	ErrInvalidState = errors.New("active live session already exists")
	// ErrConflict is returned when a compare-and-set transition loses its retry against a concurrent writer.
	ErrConflict = errors.New("concurrent session transition")
	// ErrNotFound is returned when no live session exists for the wedding.
	ErrNotFound = errors.New("live session not found")
)
