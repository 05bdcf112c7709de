package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation indicates invalid input.
	ErrValidation = errors.New("validation failed")
	// ErrInvalidState indicates an operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid state")
	// ErrSessionRequired occurs when a mutating request carries no session token.
	ErrSessionRequired = errors.New("session token required")
)
